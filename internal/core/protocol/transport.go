package protocol

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Kind selects a transport implementation.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindQUIC      Kind = "quic"
)

// Transport accepts and dials message-framed connections. A transport is
// either used on the listening side (Listen then Accept in a loop) or on
// the dialing side; Close unblocks a pending Accept.
type Transport interface {
	Kind() Kind
	Listen(ctx context.Context, addr string) error
	// Addr is the bound listen address, nil before Listen.
	Addr() net.Addr
	Accept(ctx context.Context) (Connection, error)
	Dial(ctx context.Context, addr string) (Connection, error)
	Close() error
}

// Connection is one message-framed peer link. Read and Write move whole
// frames; framing is the transport's concern.
type Connection interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Config bounds a transport's resource use.
type Config struct {
	// MaxFrameSize caps a single message frame in bytes.
	MaxFrameSize int
	// AcceptBacklog bounds connections accepted by the listener but not
	// yet drained through Accept.
	AcceptBacklog int
	// HandshakeTimeout bounds connection setup.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:     1 << 20, // 1MB
		AcceptBacklog:    64,
		HandshakeTimeout: 10 * time.Second,
	}
}

// New builds a transport of the given kind with default config.
func New(kind Kind) (Transport, error) {
	switch kind {
	case KindWebSocket:
		return NewWebSocketTransport(DefaultConfig()), nil
	case KindQUIC:
		return NewQUICTransport(DefaultConfig()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTransportNotSupported, kind)
	}
}
