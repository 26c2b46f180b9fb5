package companion

import "time"

// Config controls the companion gRPC server/client setup.
type Config struct {
	SocketPath     string
	Service        string
	ConnectTimeout time.Duration
}

// DefaultService is the health service name content surfaces bind to.
const DefaultService = "tabshell.companion"

// DefaultConnectTimeout bounds how long a surface waits for the companion.
const DefaultConnectTimeout = 3 * time.Second

func (c Config) withDefaults() Config {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}
