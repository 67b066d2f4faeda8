// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// MaxResponseBytes caps how much of an upstream body a client reads.
const MaxResponseBytes = 16 << 20

// ProxySetCookieHeader carries upstream Set-Cookie values through the proxy.
const ProxySetCookieHeader = "X-Proxy-Set-Cookie"

// Request is a transport-neutral outbound call. Cookie, APIKey and Token are
// kept apart from Header so the proxy transport can pass them as dedicated
// query parameters.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte

	Cookie string
	APIKey string
	Token  string
}

// Response is a fully buffered upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	SetCookies []string
}

// Transport executes Requests. Transport errors (refused, timeout, reset)
// are returned as NetworkError; HTTP status codes are left to the caller.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// NewInsecureHTTPClient returns an http.Client that skips certificate
// verification; home-lab services commonly use self-signed certificates.
func NewInsecureHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed home-lab certificates
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{Timeout: timeout, Transport: transport}
}

// DirectTransport talks to services directly.
type DirectTransport struct {
	Client *http.Client
}

// NewDirectTransport builds a DirectTransport with certificate checks off.
func NewDirectTransport(timeout time.Duration) *DirectTransport {
	return &DirectTransport{Client: NewInsecureHTTPClient(timeout)}
}

// Do implements Transport.
func (t *DirectTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := newHTTPRequest(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}
	ApplyAuth(httpReq.Header, req.Header, req.Cookie, req.APIKey, req.Token)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, Network(methodOrGet(req.Method)+" "+redactURL(req.URL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, Network("read body", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		SetCookies: resp.Header.Values("Set-Cookie"),
	}, nil
}

// ProxyTransport routes every call through the same-origin proxy endpoint
// (/api/proxy?url=&headers=&cookie=&apiKey=&token=).
type ProxyTransport struct {
	// Endpoint is the absolute proxy URL, e.g. http://127.0.0.1:8080/api/proxy.
	Endpoint string
	Client   *http.Client
}

// NewProxyTransport builds a ProxyTransport for endpoint.
func NewProxyTransport(endpoint string, timeout time.Duration) *ProxyTransport {
	return &ProxyTransport{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

// Do implements Transport.
func (t *ProxyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := t.proxyURL(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := newHTTPRequest(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, err
	}
	if ct, ok := req.Header["Content-Type"]; ok {
		httpReq.Header.Set("Content-Type", ct)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, Network("proxy "+redactURL(req.URL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, Network("read body", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		SetCookies: resp.Header.Values(ProxySetCookieHeader),
	}, nil
}

func (t *ProxyTransport) proxyURL(req *Request) (string, error) {
	q := url.Values{}
	q.Set("url", req.URL)
	if len(req.Header) > 0 {
		encoded, err := json.Marshal(req.Header)
		if err != nil {
			return "", fmt.Errorf("encode proxy headers: %w", err)
		}
		q.Set("headers", string(encoded))
	}
	if req.Cookie != "" {
		q.Set("cookie", req.Cookie)
	}
	if req.APIKey != "" {
		q.Set("apiKey", req.APIKey)
	}
	if req.Token != "" {
		q.Set("token", req.Token)
	}
	return t.Endpoint + "?" + q.Encode(), nil
}

// ApplyAuth merges custom headers and the credential shortcuts into h. The
// proxy handler uses the same mapping so both transports send identical
// requests upstream.
func ApplyAuth(h http.Header, custom map[string]string, cookie, apiKey, token string) {
	for k, v := range custom {
		h.Set(k, v)
	}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	if apiKey != "" {
		h.Set("X-Api-Key", apiKey)
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

func newHTTPRequest(ctx context.Context, method, rawURL string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, methodOrGet(method), rawURL, reader)
	if err != nil {
		return nil, Configurationf("invalid request URL %q: %v", redactURL(rawURL), err)
	}
	return req, nil
}

func methodOrGet(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return method
}

// redactURL strips query strings, which often carry API keys.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// CookieHeader folds Set-Cookie lines into a Cookie request header value,
// keeping only name=value pairs. Later lines win for repeated names.
func CookieHeader(setCookies []string) string {
	var (
		order  []string
		values = make(map[string]string)
	)
	for _, line := range setCookies {
		c, err := http.ParseSetCookie(line)
		if err != nil || c.Name == "" {
			continue
		}
		if _, seen := values[c.Name]; !seen {
			order = append(order, c.Name)
		}
		values[c.Name] = c.Value
	}
	pairs := make([]string, 0, len(order))
	for _, name := range order {
		pairs = append(pairs, name+"="+values[name])
	}
	return strings.Join(pairs, "; ")
}
