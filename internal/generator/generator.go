// Package generator derives a starter suite from a target URL.
package generator

import (
	"fmt"
	"strings"

	"github.com/testkube/suiterunner/internal/suite"
)

// Credentials marks the target as requiring a login. They are only used to
// decide which tests to emit; nothing is authenticated here.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Credentials) complete() bool {
	return c != nil && c.Username != "" && c.Password != ""
}

// Generate returns the starter declarations for rawURL in a fixed order:
// eight tests, plus a login api and ui pair appended when both credential
// fields are set. The URL is validated before anything is produced.
func Generate(rawURL string, creds *Credentials) ([]suite.Declaration, error) {
	u, err := suite.ParseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	// Tests target the URL as given, not its re-encoded form.
	target := strings.TrimSpace(rawURL)
	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	host := u.Hostname()

	decls := []suite.Declaration{
		api(fmt.Sprintf("Test %s Homepage", host), "GET", target),
		api(fmt.Sprintf("Test %s API Health", host), "GET", origin+"/api/health"),
		security(fmt.Sprintf("SQL Injection Test - %s", host), "sql_injection", target),
		security(fmt.Sprintf("XSS Test - %s", host), "xss", target),
		{
			Category: suite.CategoryPerformance,
			Payload: suite.Payload{
				Name:        fmt.Sprintf("Load Test - %s", host),
				Performance: &suite.PerformancePayload{Requests: 100, Users: 10},
			},
		},
		ui(fmt.Sprintf("Homepage Load - %s", host), target, "page_load"),
		{
			Category: suite.CategoryUnit,
			Payload: suite.Payload{
				Name: "URL Validation Test",
				Unit: &suite.UnitPayload{Code: `const isValid = /^https?:\/\/.+/.test("` + target + `");`},
			},
		},
		{
			Category: suite.CategoryDatabase,
			Payload: suite.Payload{
				Name:     fmt.Sprintf("Connection Test - %s", host),
				Database: &suite.DatabasePayload{Database: "main", Query: "SELECT 1"},
			},
		},
	}

	if creds.complete() {
		decls = append(decls,
			api(fmt.Sprintf("Test %s Login", host), "POST", origin+"/api/auth/login"),
			ui(fmt.Sprintf("Login Flow - %s", host), origin+"/login", "form_submit"),
		)
	}

	return decls, nil
}

func api(name, method, endpoint string) suite.Declaration {
	return suite.Declaration{
		Category: suite.CategoryAPI,
		Payload: suite.Payload{
			Name: name,
			API:  &suite.APIPayload{Method: method, Endpoint: endpoint, ExpectedStatus: 200},
		},
	}
}

func security(name, scanType, endpoint string) suite.Declaration {
	return suite.Declaration{
		Category: suite.CategorySecurity,
		Payload: suite.Payload{
			Name:     name,
			Security: &suite.SecurityPayload{ScanType: scanType, Endpoint: endpoint},
		},
	}
}

func ui(name, pageURL, action string) suite.Declaration {
	return suite.Declaration{
		Category: suite.CategoryUI,
		Payload: suite.Payload{
			Name: name,
			UI:   &suite.UIPayload{URL: pageURL, Action: action},
		},
	}
}
