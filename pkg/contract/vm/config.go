package vm

import "go.uber.org/zap"

type Config struct {
	// MaxCallDepth bounds the number of live frames of one invocation
	MaxCallDepth int `mapstructure:"maxcalldepth"`
	// MaxStackSize bounds the operand stack of a single frame
	MaxStackSize int `mapstructure:"maxstacksize"`
	// MaxStringSize bounds the byte length of any string a contract builds;
	// zero leaves strings bounded by the resource limit alone
	MaxStringSize int `mapstructure:"maxstringsize"`
	// DefaultResourceLimit applies when a request carries no limit
	DefaultResourceLimit uint64 `mapstructure:"defaultresourcelimit"`
	// MaxResourceLimit caps any requested limit
	MaxResourceLimit uint64 `mapstructure:"maxresourcelimit"`

	Logger *zap.Logger `mapstructure:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxCallDepth:         64,
		MaxStackSize:         1024,
		MaxStringSize:        65536,
		DefaultResourceLimit: 10000000,
		MaxResourceLimit:     100000000,
	}
}

// Limit resolves the effective resource limit of a request.
func (c *Config) Limit(requested uint64) uint64 {
	if requested == 0 {
		requested = c.DefaultResourceLimit
	}
	if c.MaxResourceLimit > 0 && requested > c.MaxResourceLimit {
		requested = c.MaxResourceLimit
	}
	return requested
}
