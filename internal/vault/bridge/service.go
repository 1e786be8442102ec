package bridge

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/vault/relay"
)

// SettlementHandler is notified when verified inbound funds arrive for the
// hub, and when an outbound transfer the hub initiated is confirmed by the
// destination. A handler failure must not block or reverse the asset
// release; the hub reconciles later, keyed by the same hash or reference.
// Both callbacks run without the bridge mutex held, so implementations may
// take their own locks.
type SettlementHandler interface {
	OnSettlement(ctx context.Context, amount *big.Int, sourceDomain uint32, messageHash common.Hash) error
	OnTransferConfirmed(ctx context.Context, reference string) error
}

// Service defines the asset bridge contract.
type Service interface {
	// Send burns amount toward recipient on the destination domain and
	// returns a transfer id used to track the transfer until confirmed.
	// reference carries the caller's correlation id for the operation the
	// transfer funds; it is echoed back through OnTransferConfirmed.
	Send(ctx context.Context, amount *big.Int, destDomain uint32, recipient common.Address, reference string) (string, error)

	// Confirm removes a tracked transfer after the destination confirmed
	// receipt and notifies the handler of the transfer's reference.
	Confirm(ctx context.Context, transferID string) error

	// Retry re-initiates the burn for a transfer that never confirmed.
	// force bypasses the backoff schedule and the failed flag.
	Retry(ctx context.Context, transferID string, force bool) error

	// Receive processes a verified inbound settlement, releases the asset
	// to the recipient and notifies the hub when it is the recipient.
	// nonce is the attestation's per-source sequence number; it keeps two
	// legitimate transfers of the same amount from hashing identically.
	Receive(ctx context.Context, sourceDomain uint32, nonce uint64, amount *big.Int, recipient common.Address) (common.Hash, error)

	// ExpireStale flags transfers past the bridge timeout or retry cap as
	// permanently failed and returns how many were flagged.
	ExpireStale(ctx context.Context) (int, error)

	// SetSupportedDomain adds or removes a destination domain.
	SetSupportedDomain(domain uint32, supported bool)

	// SetHandler wires the hub settlement callback. Must be called before
	// Receive.
	SetHandler(h SettlementHandler)

	// PendingTransfers and FailedTransfers expose the tracked sets.
	PendingTransfers(ctx context.Context) ([]*store.PendingTransfer, error)
	FailedTransfers(ctx context.Context) ([]*store.PendingTransfer, error)
}

type service struct {
	mu sync.Mutex

	store     *store.Store
	messenger relay.TokenMessenger
	metrics   *metrics.Service
	handler   SettlementHandler
	hubID     common.Address

	supported map[uint32]bool

	minAmount     *big.Int
	maxAmount     *big.Int
	timeout       time.Duration
	maxRetryCount int

	now func() time.Time
}

// NewService creates a new asset bridge. hubID is the local hub identity;
// settlements addressed to it trigger the handler callback.
//
//nolint:ireturn // Returning interface aids DI
func NewService(st *store.Store, tm relay.TokenMessenger, m *metrics.Service, hubID common.Address, cfg Config) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		store:         st,
		messenger:     tm,
		metrics:       m,
		hubID:         hubID,
		supported:     make(map[uint32]bool),
		minAmount:     cfg.MinAmount,
		maxAmount:     cfg.MaxAmount,
		timeout:       cfg.Timeout,
		maxRetryCount: cfg.MaxRetryCount,
		now:           now,
	}
}

func (s *service) SetHandler(h SettlementHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *service) SetSupportedDomain(domain uint32, supported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supported {
		s.supported[domain] = true
		return
	}
	delete(s.supported, domain)
}

// Send validates, burns and records the transfer. The pending record is
// only written after the burn succeeds; a synchronous burn failure leaves
// no state behind.
func (s *service) Send(ctx context.Context, amount *big.Int, destDomain uint32, recipient common.Address, reference string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == nil || amount.Cmp(s.minAmount) < 0 || amount.Cmp(s.maxAmount) > 0 {
		return "", errors.Wrapf(ErrAmountOutOfRange, "amount %v, range [%v, %v]", amount, s.minAmount, s.maxAmount)
	}

	if recipient == (common.Address{}) {
		return "", ErrZeroRecipient
	}

	if !s.supported[destDomain] {
		return "", errors.Wrapf(ErrUnsupportedDomain, "domain %d", destDomain)
	}

	if _, err := s.messenger.Burn(ctx, amount, destDomain, recipient); err != nil {
		return "", errors.Wrap(err, "failed to initiate burn")
	}

	transferID := uuid.New().String()
	if err := s.store.InsertPendingTransfer(ctx, store.PendingTransfer{
		TransferID:  transferID,
		Amount:      amount.String(),
		DestDomain:  destDomain,
		Recipient:   recipient.Hex(),
		Reference:   reference,
		InitiatedAt: s.now().Unix(),
		RetryCount:  0,
		Status:      store.TransferStatusPending,
	}); err != nil {
		return "", err
	}

	log.Info().
		Str("transfer_id", transferID).
		Str("amount", amount.String()).
		Uint32("dest_domain", destDomain).
		Str("recipient", recipient.Hex()).
		Msg("BridgeService: transfer initiated")

	s.metrics.TransferInitiated()

	return transferID, nil
}

// Confirm deletes the tracked transfer once the destination confirmed and
// hands the transfer's reference to the handler. The reference callback
// runs with s.mu released so the handler can take its own lock.
func (s *service) Confirm(ctx context.Context, transferID string) error {
	s.mu.Lock()

	t, err := s.store.PendingTransferByID(ctx, transferID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if t == nil {
		s.mu.Unlock()
		return errors.Wrapf(ErrTransferNotFound, "transfer %s", transferID)
	}

	if err := s.store.DeletePendingTransfer(ctx, transferID); err != nil {
		s.mu.Unlock()
		return err
	}

	handler := s.handler
	s.mu.Unlock()

	log.Info().
		Str("transfer_id", transferID).
		Str("amount", t.Amount).
		Uint32("dest_domain", t.DestDomain).
		Str("reference", t.Reference).
		Msg("BridgeService: transfer confirmed")

	s.metrics.TransferSettled()

	if t.Reference != "" && handler != nil {
		if err := handler.OnTransferConfirmed(ctx, t.Reference); err != nil {
			log.Error().
				Err(err).
				Str("transfer_id", transferID).
				Str("reference", t.Reference).
				Msg("BridgeService: transfer confirmation callback failed, confirmation stands")
		}
	}

	return nil
}

// Retry re-initiates the burn. Retry n unlocks retryDelayForCount(n) past
// initiation and the transfer must still be inside the bridge timeout.
func (s *service) Retry(ctx context.Context, transferID string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.PendingTransferByID(ctx, transferID)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.Wrapf(ErrTransferNotFound, "transfer %s", transferID)
	}

	if !force {
		if t.Status == store.TransferStatusFailed {
			return errors.Wrapf(ErrTransferFailed, "transfer %s", transferID)
		}

		age := s.now().Sub(time.Unix(t.InitiatedAt, 0))
		if age > s.timeout || t.RetryCount >= s.maxRetryCount {
			if err := s.markFailed(ctx, t); err != nil {
				return err
			}
			return errors.Wrapf(ErrTransferFailed, "transfer %s exceeded retry limits", transferID)
		}

		if delay := retryDelayForCount(t.RetryCount); age < delay {
			return errors.Wrapf(ErrRetryDelayNotElapsed, "need %v, elapsed %v", delay, age)
		}
	}

	amount, ok := new(big.Int).SetString(t.Amount, 10)
	if !ok {
		return errors.Errorf("corrupt amount %q on transfer %s", t.Amount, transferID)
	}

	if err := s.store.BumpTransferRetry(ctx, transferID, t.RetryCount+1); err != nil {
		return err
	}

	if _, err := s.messenger.Burn(ctx, amount, t.DestDomain, common.HexToAddress(t.Recipient)); err != nil {
		return errors.Wrapf(err, "retry %d failed for transfer %s", t.RetryCount+1, transferID)
	}

	log.Info().
		Str("transfer_id", transferID).
		Int("retry_count", t.RetryCount+1).
		Msg("BridgeService: transfer retried")

	return nil
}

// Receive processes one verified inbound settlement exactly once. The
// asset release is committed before the hub callback runs; a callback
// failure is logged and left to the hub's own idempotent reconciliation.
// s.mu is released once the settlement record commits, so the callback
// never holds the bridge lock while the hub takes its own.
func (s *service) Receive(ctx context.Context, sourceDomain uint32, nonce uint64, amount *big.Int, recipient common.Address) (common.Hash, error) {
	s.mu.Lock()

	messageHash := SettlementHash(sourceDomain, nonce, amount, recipient)

	fresh, err := s.store.RecordSettlement(ctx, messageHash.Hex(), sourceDomain, amount.String(), s.now().Unix())
	if err != nil {
		s.mu.Unlock()
		return messageHash, err
	}
	if !fresh {
		s.mu.Unlock()
		return messageHash, errors.Wrapf(ErrDuplicateSettlement, "hash %s", messageHash.Hex())
	}

	handler := s.handler
	s.mu.Unlock()

	log.Info().
		Uint32("source_domain", sourceDomain).
		Str("amount", amount.String()).
		Str("recipient", recipient.Hex()).
		Str("message_hash", messageHash.Hex()).
		Msg("BridgeService: inbound settlement released")

	s.metrics.TransferSettled()

	if recipient == s.hubID && handler != nil {
		if err := handler.OnSettlement(ctx, amount, sourceDomain, messageHash); err != nil {
			log.Error().
				Err(err).
				Str("message_hash", messageHash.Hex()).
				Msg("BridgeService: hub settlement callback failed, release stands")
		}
	}

	return messageHash, nil
}

// ExpireStale sweeps pending transfers past the timeout or retry cap.
func (s *service) ExpireStale(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.store.ListTransfers(ctx, store.TransferStatusPending)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, t := range pending {
		age := s.now().Sub(time.Unix(t.InitiatedAt, 0))
		if age <= s.timeout && t.RetryCount < s.maxRetryCount {
			continue
		}

		if err := s.markFailed(ctx, t); err != nil {
			return flagged, err
		}
		flagged++
	}

	return flagged, nil
}

func (s *service) markFailed(ctx context.Context, t *store.PendingTransfer) error {
	if err := s.store.MarkTransferFailed(ctx, t.TransferID); err != nil {
		return err
	}

	// The failed row keeps the destination recipient for audit; the refund
	// target of a manual recovery is an explicit administrative input, not
	// this field.
	log.Warn().
		Str("transfer_id", t.TransferID).
		Str("amount", t.Amount).
		Uint32("dest_domain", t.DestDomain).
		Str("recipient", t.Recipient).
		Msg("BridgeService: transfer permanently failed, manual recovery required")

	s.metrics.TransferFailed()

	return nil
}

func (s *service) PendingTransfers(ctx context.Context) ([]*store.PendingTransfer, error) {
	return s.store.ListTransfers(ctx, store.TransferStatusPending)
}

func (s *service) FailedTransfers(ctx context.Context) ([]*store.PendingTransfer, error) {
	return s.store.ListTransfers(ctx, store.TransferStatusFailed)
}

// SettlementHash derives the content hash identifying one settlement.
func SettlementHash(sourceDomain uint32, nonce uint64, amount *big.Int, recipient common.Address) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(big.NewInt(int64(sourceDomain)).Bytes(), 4),
		//nolint:gosec // Attestation nonces are far below int64 overflow
		common.LeftPadBytes(big.NewInt(int64(nonce)).Bytes(), 8),
		common.LeftPadBytes(amount.Bytes(), 32),
		recipient.Bytes(),
	)
}
