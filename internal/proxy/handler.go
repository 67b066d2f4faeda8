// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

/*
Package proxy implements the same-origin relay every integration client can
route through:

	GET|POST /api/proxy?url=<target>&headers=<json>&cookie=<c>&apiKey=<k>&token=<t>

The method and body are forwarded to url. headers is a JSON object merged
into the upstream request; cookie, apiKey and token map to Cookie,
X-Api-Key and "Authorization: Bearer". Certificate verification is off.

Upstream statuses and headers pass through, minus hop-by-hop headers.
Set-Cookie values are repeated in X-Proxy-Set-Cookie. JSON and text bodies
are buffered up to a size cap; binary, multipart and event-stream bodies
(MJPEG cameras, for instance) are piped with a flush after every chunk.
Request bodies over the cap are rejected with a 413. An unreachable upstream
yields a 502 with a JSON error body.
*/
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ultrawide/internal/integration"
	"github.com/tomtom215/ultrawide/internal/logging"
	"github.com/tomtom215/ultrawide/internal/metrics"
)

// DefaultMaxBufferBytes caps buffered response bodies.
const DefaultMaxBufferBytes = 16 << 20

const streamChunk = 32 << 10

var errRequestTooLarge = errors.New("request body too large")

// hopByHop headers are connection-scoped and never forwarded.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler is the /api/proxy endpoint.
type Handler struct {
	client    *http.Client
	maxBuffer int64
}

// NewHandler builds a Handler. timeout bounds the wait for upstream
// response headers, not the body, so streams can run indefinitely.
func NewHandler(timeout time.Duration, maxBuffer int64) *Handler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferBytes
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed home-lab certificates
	transport.ResponseHeaderTimeout = timeout
	return &Handler{
		client:    &http.Client{Transport: transport},
		maxBuffer: maxBuffer,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream, err := h.buildRequest(r)
	if errors.Is(err, errRequestTooLarge) {
		metrics.RecordProxyRequest("error", http.StatusRequestEntityTooLarge)
		writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", err.Error())
		return
	}
	if err != nil {
		metrics.RecordProxyRequest("error", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "INVALID_PROXY_REQUEST", err.Error())
		return
	}

	resp, err := h.client.Do(upstream)
	if err != nil {
		logging.Warn().Err(err).Str("target", redact(upstream.URL)).Msg("[proxy] Upstream request failed")
		metrics.RecordProxyRequest("error", http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "upstream request failed: "+err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(w.Header(), resp.Header)
	if isStreaming(resp.Header.Get("Content-Type")) {
		metrics.RecordProxyRequest("stream", resp.StatusCode)
		stream(w, resp)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBuffer+1))
	if err != nil {
		metrics.RecordProxyRequest("error", http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "reading upstream body: "+err.Error())
		return
	}
	if int64(len(body)) > h.maxBuffer {
		metrics.RecordProxyRequest("error", http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "UPSTREAM_TOO_LARGE",
			fmt.Sprintf("upstream response exceeds %d bytes", h.maxBuffer))
		return
	}
	metrics.RecordProxyRequest("buffered", resp.StatusCode)
	w.Header().Del("Content-Length")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func (h *Handler) buildRequest(r *http.Request) (*http.Request, error) {
	q := r.URL.Query()
	target, err := parseTarget(q.Get("url"))
	if err != nil {
		return nil, err
	}

	var custom map[string]string
	if raw := q.Get("headers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &custom); err != nil {
			return nil, fmt.Errorf("headers must be a JSON object of strings: %w", err)
		}
	}

	var body io.Reader = http.NoBody
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		buf, err := io.ReadAll(io.LimitReader(r.Body, h.maxBuffer+1))
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if int64(len(buf)) > h.maxBuffer {
			return nil, fmt.Errorf("%w: exceeds %d bytes", errRequestTooLarge, h.maxBuffer)
		}
		body = bytes.NewReader(buf)
	}

	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		upstream.Header.Set("Content-Type", ct)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		upstream.Header.Set("Accept", accept)
	}
	integration.ApplyAuth(upstream.Header, custom, q.Get("cookie"), q.Get("apiKey"), q.Get("token"))
	return upstream, nil
}

func parseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("url parameter is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("url must include a host")
	}
	return u, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	for _, k := range hopByHop {
		dst.Del(k)
	}
	for _, c := range src.Values("Set-Cookie") {
		dst.Add(integration.ProxySetCookieHeader, c)
	}
}

// isStreaming reports whether a body should be piped rather than buffered.
func isStreaming(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return false
	case strings.HasPrefix(ct, "multipart/"),
		strings.HasPrefix(ct, "image/"),
		strings.HasPrefix(ct, "video/"),
		strings.HasPrefix(ct, "audio/"),
		strings.HasPrefix(ct, "application/octet-stream"),
		strings.HasPrefix(ct, "text/event-stream"):
		return true
	}
	return false
}

func stream(w http.ResponseWriter, resp *http.Response) {
	w.Header().Del("Content-Length")
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, streamChunk)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				logging.Debug().Err(err).Msg("[proxy] Stream ended")
			}
			return
		}
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code, body.Error.Message = code, message
	w.Header().Del("Content-Length")
	w.Header().Del("Content-Encoding")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// redact drops the query string, which may carry credentials.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}
