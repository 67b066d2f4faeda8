// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// snippetLen bounds the body excerpt attached to errors.
const snippetLen = 200

// CheckStatus maps an HTTP status to the error taxonomy. 2xx returns nil.
func CheckStatus(resp *Response) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthenticationError{StatusCode: code, Msg: "authentication failed, check credentials"}
	case code == http.StatusNotFound:
		return &MalformedResponseError{Msg: "endpoint not found (HTTP 404), check the URL", Snippet: Snippet(resp.Body)}
	case code == http.StatusTooManyRequests || code >= 500:
		return &NetworkError{Op: "upstream", Err: fmt.Errorf("HTTP %d: %s", code, Snippet(resp.Body))}
	default:
		return &MalformedResponseError{Msg: fmt.Sprintf("unexpected HTTP %d", code), Snippet: Snippet(resp.Body)}
	}
}

// DecodeJSON decodes resp into out, reporting HTML pages (usually a login
// redirect) and invalid JSON as MalformedResponseError.
func DecodeJSON(resp *Response, out any) error {
	if LooksLikeHTML(resp) {
		return &MalformedResponseError{
			Msg:     "received HTML instead of JSON (wrong URL or login redirect)",
			Snippet: Snippet(resp.Body),
		}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &MalformedResponseError{Msg: "invalid JSON response", Snippet: Snippet(resp.Body), Err: err}
	}
	return nil
}

// DoJSON executes req, checks the status and decodes the body into out
// (skipped when out is nil). The response is returned for header access.
func DoJSON(ctx context.Context, t Transport, req *Request, out any) (*Response, error) {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(resp); err != nil {
		return resp, err
	}
	if out == nil {
		return resp, nil
	}
	return resp, DecodeJSON(resp, out)
}

// LooksLikeHTML reports whether the response is an HTML document.
func LooksLikeHTML(resp *Response) bool {
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(resp.Body)
	return bytes.HasPrefix(trimmed, []byte("<!")) || bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html"))
}

// Snippet returns a short printable excerpt of body.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetLen {
		s = s[:snippetLen] + "..."
	}
	return s
}

// JoinURL appends path to base without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Task is one named sub-fetch of a refresh cycle.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunIsolated runs tasks concurrently; a failing task never cancels its
// siblings. It returns nil when all succeed, *PartialFailure when some fail,
// and the first failing task's error (in argument order) when all fail so
// callers can still detect a lost connection.
func RunIsolated(ctx context.Context, tasks ...Task) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.Run(ctx); err != nil {
				mu.Lock()
				errs[task.Name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case len(errs) == 0:
		return nil
	case len(errs) == len(tasks):
		for _, task := range tasks {
			if err, ok := errs[task.Name]; ok {
				return err
			}
		}
	}
	return &PartialFailure{Sections: errs}
}
