// Package transport implements the listener, its plain/TLS
// auto-detection, and the HTTP framing rules IPP rides on top of.
// Grounded on go-mfp's transport/autotls.go, which demultiplexes a
// single listener into two (plain, encrypted) child listeners using a
// raw-syscall MSG_PEEK probe. This port simplifies that to a single
// merged listener — one socket that transparently serves both ipp://
// and ipps:// — and replaces the syscall.RawConn probe with a
// buffered peek that works on any net.Conn, not only ones exposing
// SyscallConn().
package transport

import (
	"bufio"
	"crypto/tls"
	"net"
)

// sniffConn wraps a net.Conn so the first few bytes read from it can
// be inspected without consuming them from the caller's point of
// view, per go-mfp's detectTLS/detectTLSRawConn (peek, don't
// consume).
type sniffConn struct {
	net.Conn
	r *bufio.Reader
}

func newSniffConn(c net.Conn) *sniffConn {
	return &sniffConn{Conn: c, r: bufio.NewReader(c)}
}

func (c *sniffConn) Read(b []byte) (int, error) { return c.r.Read(b) }

// looksLikeTLS reports whether the connection's first byte is a TLS
// handshake record (0x16), per go-mfp's `buf[0] == 0x16` check.
func (c *sniffConn) looksLikeTLS() (bool, error) {
	b, err := c.r.Peek(1)
	if err != nil {
		return false, err
	}
	return b[0] == 0x16, nil
}

// dualListener is a net.Listener whose Accept transparently upgrades
// TLS client hellos to a tls.Conn and passes plaintext connections
// through unchanged "Dual-protocol listener".
type dualListener struct {
	net.Listener
	tlsConfig *tls.Config
}

// NewDualListener wraps parent so Accept returns either a *tls.Conn
// (client sent a TLS handshake) or the plain connection, decided by
// peeking the first byte, per go-mfp's autoTLSListener but merged
// into a single listener rather than returning two.
func NewDualListener(parent net.Listener, tlsConfig *tls.Config) net.Listener {
	return &dualListener{Listener: parent, tlsConfig: tlsConfig}
}

func (l *dualListener) Accept() (net.Conn, error) {
	raw, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	sc := newSniffConn(raw)
	isTLS, err := sc.looksLikeTLS()
	if err != nil {
		sc.Close()
		return nil, err
	}
	if isTLS && l.tlsConfig != nil {
		return tls.Server(sc, l.tlsConfig), nil
	}
	return sc, nil
}
