package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ─── MockTransport ────────────────────────────────────────────────────────────

// MockTransport implements http.RoundTripper.
// It matches outgoing requests against MockSteps and returns synthetic
// responses instead of making real network calls.
//
// Install it on the shared HTTP client before the test:
//
//	mt := testkit.NewMockTransport(steps, true)
//	original := http.DefaultClient.Transport
//	http.DefaultClient.Transport = mt
//	defer func() { http.DefaultClient.Transport = original }()
//	// ... run test ...
//	testkit.AssertAllCalled(t, mt)
//
// Steps are tried in order. A step with Times > 0 is used that many times
// and then skipped, which lets one URL answer differently across calls.
type MockTransport struct {
	mu      sync.Mutex
	steps   []httpMockEntry
	require bool
	calls   []RecordedCall
}

type httpMockEntry struct {
	step      MockStep
	callCount int
}

// RecordedCall is an outgoing request seen by the transport.
type RecordedCall struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewMockTransport builds a transport from steps. When require is true an
// unmatched request fails with an error; otherwise it gets a 404.
func NewMockTransport(steps []MockStep, require bool) *MockTransport {
	mt := &MockTransport{require: require}
	for _, step := range steps {
		mt.steps = append(mt.steps, httpMockEntry{step: step})
	}
	return mt
}

// RoundTrip intercepts the outgoing request and returns a synthetic response.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.calls = append(mt.calls, RecordedCall{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	for i := range mt.steps {
		entry := &mt.steps[i]
		if !entry.matches(req) {
			continue
		}
		entry.callCount++
		return buildHTTPResponse(req, entry.step.ReturnData), nil
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call %s %s: no matching mock step", req.Method, req.URL)
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader(`{"error":"no mock configured"}`)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Calls returns a copy of every request seen so far.
func (mt *MockTransport) Calls() []RecordedCall {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]RecordedCall(nil), mt.calls...)
}

// Uncalled returns an error for every step that was never matched.
func (mt *MockTransport) Uncalled() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for _, e := range mt.steps {
		if e.callCount == 0 {
			errs = append(errs, fmt.Errorf(
				"testkit: mock step %s %q was never called", e.step.methodOrAny(), e.step.MatchURL,
			))
		}
	}
	return errs
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (e *httpMockEntry) matches(req *http.Request) bool {
	if e.step.Times > 0 && e.callCount >= e.step.Times {
		return false
	}
	if e.step.HTTPMethod != "" && !strings.EqualFold(e.step.HTTPMethod, req.Method) {
		return false
	}
	return urlMatches(req.URL.String(), e.step.MatchURL)
}

// urlMatches returns true when candidate matches pattern.
// Empty pattern matches any URL. Otherwise a prefix match is performed.
func urlMatches(candidate, pattern string) bool {
	if pattern == "" {
		return true
	}
	return strings.HasPrefix(candidate, pattern)
}

func buildHTTPResponse(req *http.Request, rd MockReturnData) *http.Response {
	code := rd.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(rd.Body)),
		Request:    req,
	}
}
