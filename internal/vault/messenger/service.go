package messenger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

// Handler receives decoded inbound instructions after all envelope checks
// pass. A handler failure is recorded against the message, not retried
// automatically.
type Handler interface {
	HandleInstruction(ctx context.Context, originDomain uint32, instr Instruction) error
}

// Mailbox is the slice of the relay the messenger needs.
type Mailbox interface {
	Dispatch(ctx context.Context, destDomain uint32, recipient common.Address, payload []byte) (common.Hash, error)
	PayGas(ctx context.Context, messageID common.Hash, destDomain uint32, payment *big.Int) error
}

// Service defines the cross-domain messaging contract.
type Service interface {
	// Send encodes and dispatches an instruction to a remote domain. When
	// dispatch or gas payment fails the message is queued and Send returns
	// an error matching ErrQueuedForRetry; the caller's local accounting
	// stands.
	Send(ctx context.Context, destDomain uint32, recipient common.Address, instr Instruction) (common.Hash, error)

	// ProcessInbound verifies and processes one inbound envelope exactly
	// once, returning its message id.
	ProcessInbound(ctx context.Context, originDomain uint32, sender common.Address, raw []byte) (common.Hash, error)

	// RetryFailed re-dispatches a queued message after its backoff delay.
	// force bypasses the schedule (privileged operators only).
	RetryFailed(ctx context.Context, id int64, force bool) error

	// FailedMessages lists the unresolved retry queue.
	FailedMessages(ctx context.Context) ([]*store.FailedMessage, error)

	// SetTrustedSender registers the single trusted sender identity for an
	// origin domain. A domain without one is untrusted entirely.
	SetTrustedSender(domain uint32, sender common.Address)

	// RemoveTrustedSender drops a domain from the allow-list.
	RemoveTrustedSender(domain uint32)

	// SetHandler wires the downstream instruction handler. Must be called
	// before ProcessInbound.
	SetHandler(h Handler)
}

type service struct {
	// mu guards handler and trusted. The remaining fields are set in
	// NewService and never reassigned, so Send reads them without the
	// lock. Callers invoke Send while holding their own locks and
	// ProcessInbound dispatches into those same callers under mu, so a
	// locked Send would close a lock-order cycle.
	mu sync.Mutex

	store       *store.Store
	mailbox     Mailbox
	metrics     *metrics.Service
	handler     Handler
	trusted     map[uint32]common.Address
	localID     common.Address
	localDomain uint32

	messageExpiry time.Duration
	maxRetries    int
	gasPayment    *big.Int

	now func() time.Time
}

// Config carries the messenger parameters.
type Config struct {
	LocalDomain   uint32
	LocalIdentity common.Address
	MessageExpiry time.Duration
	MaxRetries    int
	GasPayment    *big.Int
	Now           func() time.Time
}

// NewService creates a new cross-domain messenger.
//
//nolint:ireturn // Returning interface aids DI
func NewService(st *store.Store, mailbox Mailbox, m *metrics.Service, cfg Config) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	gas := cfg.GasPayment
	if gas == nil {
		gas = big.NewInt(0)
	}

	return &service{
		store:         st,
		mailbox:       mailbox,
		metrics:       m,
		trusted:       make(map[uint32]common.Address),
		localID:       cfg.LocalIdentity,
		localDomain:   cfg.LocalDomain,
		messageExpiry: cfg.MessageExpiry,
		maxRetries:    cfg.MaxRetries,
		gasPayment:    gas,
		now:           now,
	}
}

func (s *service) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *service) SetTrustedSender(domain uint32, sender common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[domain] = sender
}

func (s *service) RemoveTrustedSender(domain uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trusted, domain)
}

// Send encodes the instruction, reserves the per-domain outbound nonce and
// hands the envelope to the relay. Delivery failures are queued, never
// dropped.
func (s *service) Send(ctx context.Context, destDomain uint32, recipient common.Address, instr Instruction) (common.Hash, error) {
	payload, err := EncodeInstruction(instr)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := s.store.NextOutboundNonce(ctx, destDomain)
	if err != nil {
		return common.Hash{}, err
	}

	env := &Envelope{
		MessageType:     uint8(instr.Type()),
		TargetDomain:    destDomain,
		TargetRecipient: recipient,
		Payload:         payload,
		Nonce:           nonce,
		//nolint:gosec // Unix time is non-negative
		Timestamp: uint64(s.now().Unix()),
	}

	raw, err := EncodeEnvelope(env)
	if err != nil {
		return common.Hash{}, err
	}

	messageID, err := s.dispatchAndPay(ctx, destDomain, recipient, raw)
	if err != nil {
		return common.Hash{}, s.queueFailed(ctx, instr.Type(), destDomain, recipient, raw, err)
	}

	log.Info().
		Uint32("dest_domain", destDomain).
		Str("recipient", recipient.Hex()).
		Str("message_type", instr.Type().String()).
		Uint64("nonce", nonce).
		Str("message_id", messageID.Hex()).
		Msg("MessengerService: message dispatched")

	s.metrics.MessageDispatched(instr.Type().String())

	return messageID, nil
}

func (s *service) dispatchAndPay(ctx context.Context, destDomain uint32, recipient common.Address, raw []byte) (common.Hash, error) {
	messageID, err := s.mailbox.Dispatch(ctx, destDomain, recipient, raw)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to dispatch message")
	}

	if err := s.mailbox.PayGas(ctx, messageID, destDomain, s.gasPayment); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to pay relay gas")
	}

	return messageID, nil
}

func (s *service) queueFailed(ctx context.Context, msgType MessageType, destDomain uint32, recipient common.Address, raw []byte, cause error) error {
	id, qerr := s.store.EnqueueFailedMessage(ctx, store.FailedMessage{
		MessageType: uint8(msgType),
		DestDomain:  destDomain,
		Recipient:   recipient.Hex(),
		Payload:     raw,
		GasPayment:  s.gasPayment.String(),
		Attempts:    0,
		LastAttempt: s.now().Unix(),
	})
	if qerr != nil {
		// Queue write failed on top of the dispatch failure; surface both.
		return errors.Wrapf(qerr, "failed to queue undeliverable message: %v", cause)
	}

	log.Warn().
		Err(cause).
		Int64("failed_message_id", id).
		Uint32("dest_domain", destDomain).
		Msg("MessengerService: dispatch failed, message queued for retry")

	s.metrics.MessageQueued()

	return errors.Wrapf(ErrQueuedForRetry, "failed message %d: %v", id, cause)
}

// RetryFailed re-sends a queued message. Attempt n must wait
// RetryDelayForAttempt(n) past the last attempt; force bypasses both the
// delay and the attempt cap.
func (s *service) RetryFailed(ctx context.Context, id int64, force bool) error {
	msg, err := s.store.FailedMessageByID(ctx, id)
	if err != nil {
		return err
	}

	if msg.Resolved {
		return errors.New("message already resolved")
	}

	if !force {
		if msg.Attempts >= s.maxRetries {
			return errors.Wrapf(ErrRetriesExhausted, "attempts %d", msg.Attempts)
		}

		elapsed := s.now().Sub(time.Unix(msg.LastAttempt, 0))
		if delay := RetryDelayForAttempt(msg.Attempts); elapsed < delay {
			return errors.Wrapf(ErrRetryDelayNotElapsed, "need %v, elapsed %v", delay, elapsed)
		}
	}

	attempts := msg.Attempts + 1
	if err := s.store.RecordRetryAttempt(ctx, id, attempts, s.now().Unix()); err != nil {
		return err
	}

	messageID, err := s.dispatchAndPay(ctx, msg.DestDomain, common.HexToAddress(msg.Recipient), msg.Payload)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("failed_message_id", id).
			Int("attempts", attempts).
			Msg("MessengerService: retry failed")

		return errors.Wrapf(err, "retry attempt %d failed", attempts)
	}

	if err := s.store.ResolveFailedMessage(ctx, id); err != nil {
		return err
	}

	log.Info().
		Int64("failed_message_id", id).
		Int("attempts", attempts).
		Str("message_id", messageID.Hex()).
		Msg("MessengerService: queued message delivered")

	s.metrics.MessageRetried()

	return nil
}

func (s *service) FailedMessages(ctx context.Context) ([]*store.FailedMessage, error) {
	return s.store.ListFailedMessages(ctx)
}
