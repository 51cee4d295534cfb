package txpool

import (
	"github.com/Czone-League/nuls/pkg/address"
	"go.uber.org/zap"
)

// NonceReader reports the next nonce the chain expects from a sender.
type NonceReader interface {
	GetNonce(address.Address) uint64
}

type Config struct {
	// Nonces may be nil, in which case every nonce is accepted.
	Nonces NonceReader
	// Capacity bounds the number of queued transactions, 0 means poolCap.
	Capacity int

	Logger *zap.Logger
}
