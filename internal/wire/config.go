package wire

import "time"

// Default codec configuration values, per the Bitcoin protocol and this
// crawler's identity on the network.
const (
	DefaultProtocolVersion = 70002
	DefaultServices        = 1 // NODE_NETWORK
	DefaultUserAgent       = "/getaddr.bitnodes.io:0.1/"
	DefaultHeight          = 336264
	DefaultRelay           = false
	DefaultSocketTimeout   = 15 * time.Second
	DefaultPort            = 8333
)

// Config holds the codec options a Conn uses to build outbound messages.
// NewConfig returns one filled with the defaults above; a Config built by
// hand is used as-is, and its zero-value fields are not replaced.
type Config struct {
	ProtocolVersion int32
	ToServices      uint64
	FromServices    uint64
	UserAgent       string
	Height          int32
	Relay           bool
	SocketTimeout   time.Duration
}

// NewConfig returns a Config populated with this module's defaults.
func NewConfig() Config {
	return Config{
		ProtocolVersion: DefaultProtocolVersion,
		ToServices:      DefaultServices,
		FromServices:    DefaultServices,
		UserAgent:       DefaultUserAgent,
		Height:          DefaultHeight,
		Relay:           DefaultRelay,
		SocketTimeout:   DefaultSocketTimeout,
	}
}
