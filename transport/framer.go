package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/OpenPrinting/goipp"
)

const (
	hdrContentType  = "Content-Type"
	ippMIMEType     = "application/ipp"
	maxDocumentSize = 104857600
)

// ServeIPP is the signature ipp.Server.ServeIPP satisfies; declared
// here instead of imported so this package stays free of a direct
// dependency on package ipp, mirroring the narrow-interface pattern
// used between printer and job.
type ServeIPP func(ctx context.Context, req *goipp.Message, body io.Reader) (*goipp.Message, error)

// frame wraps next with the response-header policy this protocol
// profile requires on top of what net/http already supplies: an
// explicit Allow header on OPTIONS and 405 responses, "; charset=utf-8"
// appended to text/html bodies, and pass-through of any
// Content-Encoding the handler itself set. net/http already drives
// Expect: 100-continue on first body read and rejects HTTP/1.1
// requests with no Host header before a handler ever runs, so neither
// needs to be reimplemented here. Grounded on ippsrv/http.go's
// handlePrint for the overall shape of an IPP-serving net/http
// middleware, generalized to cover the HTTP response-framing rules an
// IPP transport has to get right.
func frame(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Allow", "GET, HEAD, OPTIONS, POST")
			w.WriteHeader(http.StatusOK)
			return
		}
		fw := &frameWriter{ResponseWriter: w}
		next.ServeHTTP(fw, r)
	})
}

// frameWriter defers the charset-append decision to WriteHeader, since
// the Content-Type header may not be set until the handler is ready to
// write its status line.
type frameWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *frameWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", "GET, HEAD, OPTIONS, POST")
		}
		if ct := w.Header().Get(hdrContentType); strings.HasPrefix(ct, "text/html") && !strings.Contains(ct, "charset") {
			w.Header().Set(hdrContentType, ct+"; charset=utf-8")
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

// ippHandler decodes an incoming IPP request plus its trailing
// document body and hands both to dispatch, writing back the encoded
// goipp.Message response. Grounded on ippsrv/http.go's handlePrint,
// generalized from a single hardcoded printer path to whatever path
// pattern the caller registers it under.
func ippHandler(dispatch ServeIPP) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if ct := r.Header.Get(hdrContentType); ct != "" && ct != ippMIMEType {
			slog.WarnContext(r.Context(), "unexpected content-type", "content_type", ct)
		}

		var msg goipp.Message
		if err := msg.Decode(r.Body); err != nil {
			http.Error(w, fmt.Sprintf("malformed ipp request: %v", err), http.StatusBadRequest)
			return
		}

		body := make([]byte, 0)
		buf := make([]byte, 64*1024)
		for len(body) < maxDocumentSize {
			n, err := r.Body.Read(buf)
			if n > 0 {
				body = append(body, buf[:n]...)
			}
			if err != nil {
				break
			}
		}

		resp, err := dispatch(r.Context(), &msg, bytes.NewReader(body))
		if err != nil {
			slog.ErrorContext(r.Context(), "ipp dispatch failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set(hdrContentType, ippMIMEType)
		if err := resp.Encode(w); err != nil {
			slog.ErrorContext(r.Context(), "failed to encode ipp response", "error", err)
		}
	}
}
