package h2session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// ErrNoH2 is returned when TLS succeeds but the server does not select h2 via ALPN.
var ErrNoH2 = errors.New("server did not negotiate h2 via ALPN")

// Dialer opens HTTP/2 sessions to a single target.
type Dialer struct {
	// Address is host:port.
	Address string
	// ServerName overrides the SNI name; defaults to the host part of Address.
	ServerName string
	// TLS selects h2 over TLS. When false the session speaks h2c with prior
	// knowledge.
	TLS                bool
	InsecureSkipVerify bool
	// Timeout bounds TCP connect plus TLS handshake. Zero means no limit
	// beyond the context.
	Timeout time.Duration
	// Proxy is an optional proxy URL such as socks5://127.0.0.1:1080.
	Proxy string
}

// Dial connects, completes the TLS handshake if required and returns an
// un-initiated Session.
func (d *Dialer) Dial(ctx context.Context) (*Session, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	cd, err := d.contextDialer()
	if err != nil {
		return nil, err
	}
	conn, err := cd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Address, err)
	}

	if !d.TLS {
		return New(conn), nil
	}

	serverName := d.ServerName
	if serverName == "" {
		if host, _, err := net.SplitHostPort(d.Address); err == nil {
			serverName = host
		}
	}
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: d.InsecureSkipVerify,
		NextProtos:         []string{http2.NextProtoTLS},
		MinVersion:         tls.VersionTLS12,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", d.Address, err)
	}
	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
		tlsConn.Close()
		return nil, fmt.Errorf("%w (got %q)", ErrNoH2, proto)
	}
	return New(tlsConn), nil
}

func (d *Dialer) contextDialer() (proxy.ContextDialer, error) {
	base := &net.Dialer{}
	if d.Proxy == "" {
		return base, nil
	}
	u, err := url.Parse(d.Proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	pd, err := proxy.FromURL(u, base)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", u.Redacted(), err)
	}
	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd, nil
	}
	return contextlessDialer{pd}, nil
}

type contextlessDialer struct {
	proxy.Dialer
}

func (c contextlessDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	return c.Dial(network, address)
}
