package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	outhttp "github.com/shashiranjanraj/offersync/pkg/http"
)

// ─── Public API ───────────────────────────────────────────────────────────────

// RunFlow loads the scenarios in path and fires them in order against
// handler, each as a t.Run subtest. A failing step stops the flow because
// later steps depend on its state.
//
// Lifecycle per step:
//  1. Install the step's mock transport on pkg/http.DefaultClient.
//  2. Fire the request with httptest.
//  3. Assert status code and, when given, the JSON body.
//  4. Verify every mock step was called.
//  5. Restore the previous transport.
func RunFlow(t *testing.T, handler http.Handler, path string) {
	t.Helper()

	scenarios, err := LoadFlow(path)
	if err != nil {
		t.Fatalf("%v", err)
	}

	for _, s := range scenarios {
		if !t.Run(s.Name, func(t *testing.T) { runScenario(t, handler, s) }) {
			return
		}
	}
}

// ─── Internal execution ───────────────────────────────────────────────────────

func runScenario(t *testing.T, handler http.Handler, s *Scenario) {
	t.Helper()

	var reqBody io.Reader
	if len(s.RequestBody) > 0 {
		reqBody = bytes.NewReader(s.RequestBody)
	}

	mt := NewMockTransport(s.NetUtilMockStep, s.IsMockRequired)
	original := outhttp.DefaultClient.Transport
	outhttp.DefaultClient.Transport = mt
	defer func() { outhttp.DefaultClient.Transport = original }()

	req := httptest.NewRequest(strings.ToUpper(s.RequestMethod), s.RequestURL, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	AssertStatusCode(t, s, rec.Code, rec.Body.Bytes())
	AssertJSONBody(t, s, s.ExpectedBody, rec.Body.Bytes())
	AssertAllCalled(t, mt)
}
