package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// idleTimeout is the 30-second idle wait for a connection worker with
// no request in flight, applied here via http.Server's own
// idle/header timeouts rather than a hand-rolled deadline loop, since
// net/http already supplies the per-connection scheduling needed.
const (
	idleTimeout       = 30 * time.Second
	readHeaderTimeout = 30 * time.Second
)

// Server is components A-C: one net.Listener (optionally dual-protocol
// via NewDualListener) per configured address, all served by a single
// http.Server whose handler is built around the IPP framer.
// Grounded on ippsrv/http.go's Server{srv *http.Server}, generalized
// from a single listener to a configurable address set.
type Server struct {
	TLSConfig *tls.Config

	listeners []net.Listener
	servers   []*http.Server
}

// NewServer builds the HTTP front door. addrs is the set of "host:port"
// strings to listen on; ippPath is the mux pattern prefix IPP requests
// arrive under (e.g. "/ipp/"); dispatch is ipp.Server.ServeIPP; extra
// lets the caller register the admin status page and any other
// non-IPP routes (icon, media, supplies) on the same mux.
func NewServer(ippPath string, dispatch ServeIPP, extra func(*http.ServeMux)) *Server {
	mux := http.NewServeMux()
	mux.Handle(ippPath, ippHandler(dispatch))
	if extra != nil {
		extra(mux)
	}
	return &Server{
		servers: []*http.Server{{
			Handler:           frame(mux),
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}},
	}
}

// Listen binds addr and, when TLSConfig is set, wraps it in the
// TLS-sniffing dual listener described in 4.C; otherwise the listener
// serves plain HTTP only. Call once per configured listen address
// before Serve.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if s.TLSConfig != nil {
		ln = NewDualListener(ln, s.TLSConfig)
	}
	s.listeners = append(s.listeners, ln)
	return nil
}

// Serve runs http.Server.Serve on every listener registered via
// Listen, one goroutine each, and blocks until ctx is cancelled or one
// of them returns a non-shutdown error.
func (s *Server) Serve(ctx context.Context) error {
	if len(s.listeners) == 0 {
		return errors.New("transport: no listeners configured, call Listen first")
	}
	srv := s.servers[0]
	errCh := make(chan error, len(s.listeners))
	for _, ln := range s.listeners {
		go func(ln net.Listener) {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- nil
		}(ln)
	}

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil {
			slog.Error("listener exited", "error", err)
			_ = s.Shutdown(context.Background())
		}
		return err
	}
}

// Shutdown gracefully stops every underlying http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
