// Package testkit provides helpers for tests: a migrated sqlite database,
// a controllable clock, a scripted HTTP transport for the vendor API and a
// JSON-scenario runner for HTTP flows.
//
// A flow file is a JSON array of scenarios fired in order against the same
// handler, so later steps observe the state earlier ones created:
//
//	[
//	  {
//	    "name": "register product",
//	    "requestMethod": "POST",
//	    "requestUrl": "/api/products",
//	    "requestBody": {"name": "Product 1", "description": "d"},
//	    "expectedCode": 201,
//	    "expectedBody": {"status": 201, "data": {"id": 1}},
//	    "netUtilMockStep": [
//	      {"httpMethod": "POST", "matchUrl": "http://vendor.test/products/register",
//	       "returnData": {"statusCode": 201}}
//	    ]
//	  }
//	]
//
// Example _test.go:
//
//	func TestCatalogFlow(t *testing.T) {
//	    testkit.RunFlow(t, handler, "testdata/catalog_flow.json")
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ─── Schema ───────────────────────────────────────────────────────────────────

// Scenario describes a single REST API test case.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	RequestMethod string            `json:"requestMethod"`
	RequestURL    string            `json:"requestUrl"`
	RequestBody   json.RawMessage   `json:"requestBody"`
	Headers       map[string]string `json:"headers"`

	ExpectedCode int             `json:"expectedCode"`
	ExpectedBody json.RawMessage `json:"expectedBody"`

	// IsMockRequired fails the step on any outgoing call without a mock.
	IsMockRequired bool `json:"isMockRequired"`

	NetUtilMockStep []MockStep `json:"netUtilMockStep"`
}

// MockStep describes one intercepted outgoing HTTP call.
type MockStep struct {
	// HTTPMethod restricts the match to one verb. Empty matches any.
	HTTPMethod string `json:"httpMethod"`

	// MatchURL is a prefix of the outgoing URL. Empty matches any URL.
	MatchURL string `json:"matchUrl"`

	// Times limits how often the step answers. Zero means unlimited.
	Times int `json:"times"`

	ReturnData MockReturnData `json:"returnData"`
}

// MockReturnData is the synthetic response for a mock step.
type MockReturnData struct {
	// StatusCode defaults to 200.
	StatusCode int `json:"statusCode"`

	// Body is sent verbatim; it may be any JSON value.
	Body json.RawMessage `json:"body"`
}

func (s MockStep) methodOrAny() string {
	if s.HTTPMethod == "" {
		return "ANY"
	}
	return s.HTTPMethod
}

// ─── Loading ──────────────────────────────────────────────────────────────────

// LoadFlow reads a JSON array of scenarios.
func LoadFlow(path string) ([]*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var scenarios []*Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}

	for i, s := range scenarios {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("testkit: invalid scenario %d in %q: %w", i, abs, err)
		}
	}
	return scenarios, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	return nil
}
