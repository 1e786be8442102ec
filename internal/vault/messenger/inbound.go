package messenger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/store"
)

// ProcessInbound runs the verification pipeline over one inbound envelope:
//
//  1. origin/sender must be on the allow-list
//  2. the content hash must not have been recorded before
//  3. the envelope must address this instance
//  4. the timestamp must be neither future, expired, nor stale
//  5. the nonce must extend the per-sender sequence without a gap
//  6. only then is state committed and the instruction dispatched
//
// A handler failure after commit is recorded as processed-without-success;
// the message is never reprocessed.
func (s *service) ProcessInbound(ctx context.Context, originDomain uint32, sender common.Address, raw []byte) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trusted, ok := s.trusted[originDomain]
	if !ok || trusted != sender {
		s.metrics.MessageRejected("untrusted_sender")
		return common.Hash{}, errors.Wrapf(ErrUntrustedSender, "domain %d sender %s", originDomain, sender.Hex())
	}

	messageID := MessageID(originDomain, sender, raw)

	seen, err := s.store.HasInboundMessage(ctx, messageID.Hex())
	if err != nil {
		return common.Hash{}, err
	}
	if seen {
		s.metrics.MessageRejected("duplicate")
		return messageID, errors.Wrapf(ErrDuplicateMessage, "message %s", messageID.Hex())
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		s.metrics.MessageRejected("malformed")
		return messageID, err
	}

	if env.TargetRecipient != s.localID || env.TargetDomain != s.localDomain {
		s.metrics.MessageRejected("wrong_recipient")
		return messageID, errors.Wrapf(ErrWrongRecipient, "recipient %s domain %d", env.TargetRecipient.Hex(), env.TargetDomain)
	}

	if err := s.checkTimestampAndNonce(ctx, originDomain, sender, env); err != nil {
		return messageID, err
	}

	instr, err := DecodeInstruction(MessageType(env.MessageType), env.Payload)
	if err != nil {
		s.metrics.MessageRejected("malformed")
		return messageID, err
	}

	// All checks passed: commit before dispatching so a handler crash can
	// never reopen the message.
	//nolint:gosec // Envelope timestamp fits in int64 until year 292277026596
	if err := s.store.InsertInboundMessage(ctx, store.InboundMessage{
		MessageID:    messageID.Hex(),
		OriginDomain: originDomain,
		Sender:       sender.Hex(),
		Nonce:        env.Nonce,
		Timestamp:    int64(env.Timestamp),
		Processed:    true,
		Success:      false,
	}); err != nil {
		return messageID, err
	}

	//nolint:gosec // Envelope timestamp fits in int64
	if err := s.store.AdvanceCursor(ctx, originDomain, sender.Hex(), env.Nonce, int64(env.Timestamp)); err != nil {
		return messageID, err
	}

	if err := s.handler.HandleInstruction(ctx, originDomain, instr); err != nil {
		log.Error().
			Err(err).
			Uint32("origin_domain", originDomain).
			Str("message_id", messageID.Hex()).
			Str("message_type", MessageType(env.MessageType).String()).
			Msg("MessengerService: inbound handler failed, message recorded without success")

		s.metrics.MessageProcessed(false)

		return messageID, nil
	}

	if err := s.store.MarkInboundSuccess(ctx, messageID.Hex()); err != nil {
		return messageID, err
	}

	log.Info().
		Uint32("origin_domain", originDomain).
		Str("message_id", messageID.Hex()).
		Str("message_type", MessageType(env.MessageType).String()).
		Uint64("nonce", env.Nonce).
		Msg("MessengerService: inbound message processed")

	s.metrics.MessageProcessed(true)

	return messageID, nil
}

func (s *service) checkTimestampAndNonce(ctx context.Context, originDomain uint32, sender common.Address, env *Envelope) error {
	now := s.now()
	//nolint:gosec // Envelope timestamp fits in int64
	ts := time.Unix(int64(env.Timestamp), 0)

	if ts.After(now) {
		s.metrics.MessageRejected("future_timestamp")
		return errors.Wrapf(ErrFutureTimestamp, "timestamp %v, now %v", ts.Unix(), now.Unix())
	}

	if now.Sub(ts) > s.messageExpiry {
		s.metrics.MessageRejected("expired")
		return errors.Wrapf(ErrMessageExpired, "timestamp %v, expiry %v", ts.Unix(), s.messageExpiry)
	}

	lastNonce, lastTs, err := s.store.Cursor(ctx, originDomain, sender.Hex())
	if err != nil {
		return err
	}

	if ts.Unix() <= lastTs {
		s.metrics.MessageRejected("stale_timestamp")
		return errors.Wrapf(ErrStaleTimestamp, "timestamp %v, last %v", ts.Unix(), lastTs)
	}

	if env.Nonce != lastNonce+1 {
		s.metrics.MessageRejected("nonce_gap")
		return errors.Wrapf(ErrNonceGap, "nonce %d, expected %d", env.Nonce, lastNonce+1)
	}

	return nil
}
