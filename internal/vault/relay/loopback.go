package relay

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// LoopbackMailbox is an in-process Mailbox used by tests and local mode.
// Dispatched payloads are retained in order; failure hooks let tests
// exercise the retry paths deterministically.
type LoopbackMailbox struct {
	mu sync.Mutex

	Dispatched []LoopbackDispatch

	// FailDispatch and FailPayGas, when set, make the next matching call
	// fail once and then clear themselves.
	FailDispatch bool
	FailPayGas   bool

	seq uint64
}

// NewLoopbackMailbox creates an empty in-process mailbox.
func NewLoopbackMailbox() *LoopbackMailbox {
	return &LoopbackMailbox{}
}

// LoopbackDispatch captures one dispatched envelope.
type LoopbackDispatch struct {
	MessageID  common.Hash
	DestDomain uint32
	Recipient  common.Address
	Payload    []byte
	GasPaid    *big.Int
}

// Dispatch records the envelope and returns a deterministic message id.
func (l *LoopbackMailbox) Dispatch(_ context.Context, destDomain uint32, recipient common.Address, payload []byte) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailDispatch {
		l.FailDispatch = false
		return common.Hash{}, errors.New("loopback mailbox: dispatch refused")
	}

	l.seq++
	id := crypto.Keccak256Hash(
		common.LeftPadBytes(big.NewInt(int64(destDomain)).Bytes(), 4),
		recipient.Bytes(),
		payload,
		big.NewInt(int64(l.seq)).Bytes(),
	)

	l.Dispatched = append(l.Dispatched, LoopbackDispatch{
		MessageID:  id,
		DestDomain: destDomain,
		Recipient:  recipient,
		Payload:    payload,
	})

	return id, nil
}

// PayGas marks the dispatched message as paid.
func (l *LoopbackMailbox) PayGas(_ context.Context, messageID common.Hash, _ uint32, payment *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailPayGas {
		l.FailPayGas = false
		return errors.New("loopback mailbox: gas payment refused")
	}

	for i := range l.Dispatched {
		if l.Dispatched[i].MessageID == messageID {
			l.Dispatched[i].GasPaid = new(big.Int).Set(payment)
			return nil
		}
	}

	return errors.New("loopback mailbox: unknown message id")
}

// LoopbackTokenMessenger is an in-process TokenMessenger.
type LoopbackTokenMessenger struct {
	mu sync.Mutex

	Burns []LoopbackBurn

	// FailBurn makes the next Burn fail once and then clears itself.
	FailBurn bool

	seq uint64
}

// NewLoopbackTokenMessenger creates an empty in-process token messenger.
func NewLoopbackTokenMessenger() *LoopbackTokenMessenger {
	return &LoopbackTokenMessenger{}
}

// LoopbackBurn captures one initiated burn.
type LoopbackBurn struct {
	BurnID     common.Hash
	Amount     *big.Int
	DestDomain uint32
	Recipient  common.Address
}

// Burn records the burn and returns a deterministic burn id.
func (l *LoopbackTokenMessenger) Burn(_ context.Context, amount *big.Int, destDomain uint32, recipient common.Address) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailBurn {
		l.FailBurn = false
		return common.Hash{}, errors.New("loopback token messenger: burn refused")
	}

	l.seq++
	id := crypto.Keccak256Hash(
		amount.Bytes(),
		common.LeftPadBytes(big.NewInt(int64(destDomain)).Bytes(), 4),
		recipient.Bytes(),
		big.NewInt(int64(l.seq)).Bytes(),
	)

	l.Burns = append(l.Burns, LoopbackBurn{
		BurnID:     id,
		Amount:     new(big.Int).Set(amount),
		DestDomain: destDomain,
		Recipient:  recipient,
	})

	return id, nil
}
