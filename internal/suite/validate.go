package suite

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	apiMethods = []string{"GET", "POST", "PUT", "DELETE"}
	scanTypes  = []string{"sql_injection", "xss", "csrf", "headers", "brute_force"}
	uiActions  = []string{"page_load", "element_check", "form_submit", "click"}
)

// ParseHTTPURL parses raw as an absolute http or https URL.
func ParseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidURL, raw)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// Validate checks that p is a well-formed declaration for category c.
func (p Payload) Validate(c Category) error {
	if c.Index() < 0 {
		return invalid("unknown category %q", c)
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name is required")
	}

	set := 0
	for _, present := range []bool{p.Unit != nil, p.API != nil, p.Database != nil, p.Performance != nil, p.Security != nil, p.UI != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return invalid("exactly one %s body is required, got %d bodies", c, set)
	}

	switch c {
	case CategoryUnit:
		if p.Unit == nil {
			return invalid("unit test requires a unit body")
		}
		if strings.TrimSpace(p.Unit.Code) == "" {
			return invalid("unit test %q has no code", p.Name)
		}
	case CategoryAPI:
		if p.API == nil {
			return invalid("api test requires an api body")
		}
		if !slices.Contains(apiMethods, p.API.Method) {
			return invalid("api test %q: unsupported method %q", p.Name, p.API.Method)
		}
		if err := checkURL(p.Name, "endpoint", p.API.Endpoint); err != nil {
			return err
		}
		if p.API.ExpectedStatus < 100 || p.API.ExpectedStatus > 599 {
			return invalid("api test %q: expected status %d out of range", p.Name, p.API.ExpectedStatus)
		}
	case CategoryDatabase:
		if p.Database == nil {
			return invalid("database test requires a database body")
		}
		if strings.TrimSpace(p.Database.Database) == "" {
			return invalid("database test %q has no database name", p.Name)
		}
		if strings.TrimSpace(p.Database.Query) == "" {
			return invalid("database test %q has no query", p.Name)
		}
	case CategoryPerformance:
		if p.Performance == nil {
			return invalid("performance test requires a performance body")
		}
		if p.Performance.Requests < 1 {
			return invalid("performance test %q: request count must be positive", p.Name)
		}
		if p.Performance.Users < 1 {
			return invalid("performance test %q: concurrent users must be positive", p.Name)
		}
	case CategorySecurity:
		if p.Security == nil {
			return invalid("security test requires a security body")
		}
		if !slices.Contains(scanTypes, p.Security.ScanType) {
			return invalid("security test %q: unsupported scan type %q", p.Name, p.Security.ScanType)
		}
		if err := checkURL(p.Name, "endpoint", p.Security.Endpoint); err != nil {
			return err
		}
	case CategoryUI:
		if p.UI == nil {
			return invalid("ui test requires a ui body")
		}
		if err := checkURL(p.Name, "page URL", p.UI.URL); err != nil {
			return err
		}
		if !slices.Contains(uiActions, p.UI.Action) {
			return invalid("ui test %q: unsupported action %q", p.Name, p.UI.Action)
		}
	}
	return nil
}

func checkURL(name, field, raw string) error {
	if _, err := ParseHTTPURL(raw); err != nil {
		return invalid("test %q: %s: %v", name, field, err)
	}
	return nil
}

// Validate checks every declaration in the snapshot against the category it
// is filed under.
func (s Snapshot) Validate() error {
	for c, tests := range s {
		for _, tc := range tests {
			if tc.Category != "" && tc.Category != c {
				return invalid("test %q filed under %s but declared as %s", tc.Name, c, tc.Category)
			}
			if err := tc.Payload.Validate(c); err != nil {
				return err
			}
		}
	}
	return nil
}
