// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// RedirectFallbackConfig configures RedirectFallback.
type RedirectFallbackConfig struct {
	Resolver *service.Resolver
	Sites    *service.SiteService
	Metrics  *metrics.Metrics
	// SkipPrefixes are path prefixes that are never redirected, such as the
	// admin site and the API.
	SkipPrefixes []string
	// SkipPaths are exact paths that are never redirected, such as health
	// checks. Paths that merely start with one are still redirected.
	SkipPaths []string
}

func (cfg RedirectFallbackConfig) skips(path string) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range cfg.SkipPrefixes {
		if util.HasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RedirectFallback answers requests that the wrapped handler could not serve
// with a stored redirect. Responses other than 404 pass through untouched;
// a 404 is held back until the redirect lookup has missed.
func RedirectFallback(cfg RedirectFallbackConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			nw := &notFoundWriter{ResponseWriter: w, header: http.Header{}}
			next.ServeHTTP(nw, r)
			if !nw.notFound {
				if !nw.wroteHeader {
					nw.flushHeader(http.StatusOK)
				}
				return
			}

			if serveRedirect(w, r, cfg) {
				return
			}
			nw.replay()
		})
	}
}

// serveRedirect writes the redirect for r, if any, and reports whether it did.
func serveRedirect(w http.ResponseWriter, r *http.Request, cfg RedirectFallbackConfig) bool {
	site := GetSite(r)
	if site == nil {
		s, err := cfg.Sites.ResolveByHost(r.Context(), util.RequestHost(r))
		if err != nil {
			slog.Error("failed to resolve site for redirect", "host", r.Host, "error", err)
			return false
		}
		site = &s
	}

	target, err := cfg.Resolver.Resolve(r.Context(), site.ID, r.URL.RequestURI())
	if err != nil {
		slog.Error("redirect lookup failed", "path", r.URL.RequestURI(), "error", err)
		return false
	}
	if target == nil {
		return false
	}

	cfg.Metrics.RecordServed(target.Status)
	if target.IsGone() {
		w.WriteHeader(target.Status)
		return true
	}
	w.Header().Set("Location", target.Location)
	w.WriteHeader(target.Status)
	return true
}

// notFoundWriter passes responses through unless their status is 404, in
// which case headers and body are kept for a later replay.
type notFoundWriter struct {
	http.ResponseWriter
	header      http.Header
	wroteHeader bool
	notFound    bool
	body        bytes.Buffer
	status      int
}

func (nw *notFoundWriter) Header() http.Header {
	return nw.header
}

func (nw *notFoundWriter) WriteHeader(code int) {
	if nw.wroteHeader {
		return
	}
	nw.wroteHeader = true
	nw.status = code
	if code == http.StatusNotFound {
		nw.notFound = true
		return
	}
	nw.flushHeader(code)
}

func (nw *notFoundWriter) Write(b []byte) (int, error) {
	if !nw.wroteHeader {
		nw.WriteHeader(http.StatusOK)
	}
	if nw.notFound {
		return nw.body.Write(b)
	}
	return nw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for streamed, non-404 responses.
func (nw *notFoundWriter) Flush() {
	if nw.notFound {
		return
	}
	if f, ok := nw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (nw *notFoundWriter) Unwrap() http.ResponseWriter {
	return nw.ResponseWriter
}

func (nw *notFoundWriter) flushHeader(code int) {
	dst := nw.ResponseWriter.Header()
	for k, v := range nw.header {
		dst[k] = v
	}
	nw.ResponseWriter.WriteHeader(code)
}

// replay writes the held 404 response.
func (nw *notFoundWriter) replay() {
	nw.flushHeader(nw.status)
	_, _ = nw.ResponseWriter.Write(nw.body.Bytes())
}
