package messenger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// Envelope is the wire format handed to the relay protocol.
type Envelope struct {
	MessageType     uint8
	TargetDomain    uint32
	TargetRecipient common.Address
	Payload         []byte
	Nonce           uint64
	Timestamp       uint64
}

// EncodeEnvelope serializes an envelope with RLP.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(env)

	return raw, errors.Wrap(err, "failed to encode envelope")
}

// DecodeEnvelope parses an RLP envelope.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := rlp.DecodeBytes(raw, env); err != nil {
		return nil, errors.Wrap(err, "failed to decode envelope")
	}

	return env, nil
}

// EncodeInstruction serializes the payload of an instruction. The message
// type travels in the envelope, not the payload.
func EncodeInstruction(instr Instruction) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(instr)

	return raw, errors.Wrapf(err, "failed to encode %v instruction", instr.Type())
}

// DecodeInstruction parses a payload according to the envelope's message
// type. Unknown types are rejected, never skipped. Instructions are
// returned as values so handlers can switch on the concrete types.
func DecodeInstruction(messageType MessageType, payload []byte) (Instruction, error) {
	var (
		instr Instruction
		err   error
	)

	switch messageType {
	case MessageTypeDeposit:
		v := DepositInstruction{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypeWithdraw:
		v := WithdrawInstruction{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypeYieldReport:
		v := YieldReport{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypeRebalance:
		v := RebalanceCommand{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypePause:
		v := PauseCommand{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypeUnpause:
		v := UnpauseCommand{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	case MessageTypeEmergencyWithdraw:
		v := EmergencyWithdrawCommand{}
		err = rlp.DecodeBytes(payload, &v)
		instr = v
	default:
		return nil, errors.Errorf("unknown message type %d", messageType)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %v payload", messageType)
	}

	return instr, nil
}

// MessageID computes the content hash identifying an inbound message. Two
// distinct legitimate messages always differ in nonce or timestamp inside
// raw, so hashing the full content gives a globally unique id.
func MessageID(originDomain uint32, sender common.Address, raw []byte) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(big.NewInt(int64(originDomain)).Bytes(), 4),
		sender.Bytes(),
		raw,
	)
}
