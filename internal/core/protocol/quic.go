package protocol

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// alpnFeed is the ALPN token both feed ends negotiate.
const alpnFeed = "openrts-feed"

var _ Transport = (*QUICTransport)(nil)

// QUICTransport moves feed frames over QUIC, one stream per message with
// length-prefix framing.
type QUICTransport struct {
	config   Config
	listener *quic.Listener
	mu       sync.RWMutex
}

// NewQUICTransport creates a new, uninitialized QUIC transport.
func NewQUICTransport(config Config) *QUICTransport {
	return &QUICTransport{config: config}
}

func (t *QUICTransport) Kind() Kind { return KindQUIC }

// Listen starts a QUIC listener on the given address with a self-signed
// in-memory certificate. Production deployments would load a real one.
func (t *QUICTransport) Listen(_ context.Context, addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return ErrAlreadyListening
	}

	tlsConfig, err := generateInMemoryTLSConfig()
	if err != nil {
		return fmt.Errorf("generate TLS config: %w", err)
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		HandshakeIdleTimeout: t.config.HandshakeTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListenFailed, addr, err)
	}

	t.listener = listener
	return nil
}

// Addr returns the bound listener address, for listeners started on ":0".
func (t *QUICTransport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Accept waits for and returns the next connection to the listener.
func (t *QUICTransport) Accept(ctx context.Context) (Connection, error) {
	t.mu.RLock()
	listener := t.listener
	t.mu.RUnlock()
	if listener == nil {
		return nil, ErrNotListening
	}

	conn, err := listener.Accept(ctx)
	if err != nil {
		if errors.Is(err, quic.ErrServerClosed) {
			return nil, ErrTransportClosed
		}
		return nil, fmt.Errorf("accept connection: %w", err)
	}

	return &quicConnection{conn: conn, maxFrame: t.config.MaxFrameSize}, nil
}

// Dial creates a client connection to the given address.
func (t *QUICTransport) Dial(ctx context.Context, addr string) (Connection, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true, // matches the self-signed listener cert
		NextProtos:         []string{alpnFeed},
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{
		HandshakeIdleTimeout: t.config.HandshakeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, addr, err)
	}

	return &quicConnection{conn: conn, maxFrame: t.config.MaxFrameSize}, nil
}

// Close closes the transport listener.
func (t *QUICTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		err := t.listener.Close()
		t.listener = nil
		return err
	}
	return nil
}

var _ Connection = (*quicConnection)(nil)

// quicConnection wraps a *quic.Conn into the Connection interface.
type quicConnection struct {
	conn     *quic.Conn
	maxFrame int
}

// Read reads one length-prefixed frame from the next incoming stream.
func (c *quicConnection) Read(ctx context.Context) ([]byte, error) {
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept stream: %w", err)
	}

	var lenBuf [4]byte
	if _, err = io.ReadFull(stream, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	length := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
	if c.maxFrame > 0 && length > c.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err = io.ReadFull(stream, data); err != nil {
		return nil, fmt.Errorf("read frame data: %w", err)
	}
	return data, nil
}

// Write sends one length-prefixed frame on a fresh stream.
func (c *quicConnection) Write(ctx context.Context, data []byte) error {
	if c.maxFrame > 0 && len(data) > c.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	length := len(data)
	frame := make([]byte, 0, 4+length)
	frame = append(frame, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	frame = append(frame, data...)

	if _, err = stream.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the QUIC connection with a normal status.
func (c *quicConnection) Close() error {
	return c.conn.CloseWithError(0, "connection closed")
}

func (c *quicConnection) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *quicConnection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// generateInMemoryTLSConfig creates a self-signed certificate for local and
// development listeners.
func generateInMemoryTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"OpenRTS"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{alpnFeed},
	}, nil
}
