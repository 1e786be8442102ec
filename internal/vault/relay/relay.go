package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Mailbox is the external message-relay protocol. The relay authenticates
// delivery between domains; the messenger still validates sender/domain
// trust and ordering itself rather than trusting the transport alone.
type Mailbox interface {
	// Dispatch submits an encoded envelope for delivery to recipient on the
	// destination domain and returns the relay's message id.
	Dispatch(ctx context.Context, destDomain uint32, recipient common.Address, payload []byte) (common.Hash, error)

	// PayGas pays the relay's delivery fee for a previously dispatched
	// message. A dispatch without a paid fee will not be delivered.
	PayGas(ctx context.Context, messageID common.Hash, destDomain uint32, payment *big.Int) error
}

// TokenMessenger is the external burn/mint asset-bridging protocol. Burn
// destroys the asset locally; the destination domain mints it to the
// recipient and later produces an attested settlement message.
type TokenMessenger interface {
	Burn(ctx context.Context, amount *big.Int, destDomain uint32, recipient common.Address) (common.Hash, error)
}
