package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testkube/suiterunner/internal/registry"
	"github.com/testkube/suiterunner/internal/suite"
)

func TestGenerateWithoutCredentials(t *testing.T) {
	decls, err := Generate("https://example.com", nil)
	require.NoError(t, err)
	require.Len(t, decls, 8)

	wantCategories := []suite.Category{
		suite.CategoryAPI,
		suite.CategoryAPI,
		suite.CategorySecurity,
		suite.CategorySecurity,
		suite.CategoryPerformance,
		suite.CategoryUI,
		suite.CategoryUnit,
		suite.CategoryDatabase,
	}
	for i, d := range decls {
		assert.Equal(t, wantCategories[i], d.Category, "declaration %d", i)
		assert.NoError(t, d.Payload.Validate(d.Category), "declaration %d", i)
	}

	assert.Equal(t, "Test example.com Homepage", decls[0].Name)
	assert.Equal(t, &suite.APIPayload{Method: "GET", Endpoint: "https://example.com", ExpectedStatus: 200}, decls[0].API)
	assert.Equal(t, "https://example.com/api/health", decls[1].API.Endpoint)
	assert.Equal(t, "sql_injection", decls[2].Security.ScanType)
	assert.Equal(t, "xss", decls[3].Security.ScanType)
	assert.Equal(t, &suite.PerformancePayload{Requests: 100, Users: 10}, decls[4].Performance)
	assert.Equal(t, "Load Test - example.com", decls[4].Name)
	assert.Equal(t, &suite.UIPayload{URL: "https://example.com", Action: "page_load"}, decls[5].UI)
	assert.Contains(t, decls[6].Unit.Code, `.test("https://example.com")`)
	assert.Equal(t, &suite.DatabasePayload{Database: "main", Query: "SELECT 1"}, decls[7].Database)
	assert.Equal(t, "Connection Test - example.com", decls[7].Name)
}

func TestGenerateWithCredentialsAppendsLoginTests(t *testing.T) {
	decls, err := Generate("https://example.com/app", &Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	require.Len(t, decls, 10)

	base, err := Generate("https://example.com/app", nil)
	require.NoError(t, err)
	assert.Equal(t, base, decls[:8], "credentials only append")

	login := decls[8]
	assert.Equal(t, suite.CategoryAPI, login.Category)
	assert.Equal(t, "Test example.com Login", login.Name)
	assert.Equal(t, &suite.APIPayload{Method: "POST", Endpoint: "https://example.com/api/auth/login", ExpectedStatus: 200}, login.API)

	flow := decls[9]
	assert.Equal(t, suite.CategoryUI, flow.Category)
	assert.Equal(t, &suite.UIPayload{URL: "https://example.com/login", Action: "form_submit"}, flow.UI)
}

func TestGenerateIgnoresPartialCredentials(t *testing.T) {
	decls, err := Generate("http://example.com:8080", &Credentials{Username: "a"})
	require.NoError(t, err)
	assert.Len(t, decls, 8)
	assert.Equal(t, "http://example.com:8080/api/health", decls[1].API.Endpoint)
	assert.Equal(t, "Test example.com Homepage", decls[0].Name)
}

func TestGenerateRejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"not-a-url", "", "ftp://example.com", "//example.com"} {
		decls, err := Generate(raw, &Credentials{Username: "a", Password: "b"})
		assert.ErrorIs(t, err, suite.ErrInvalidURL, raw)
		assert.Empty(t, decls, raw)
	}
}

func TestGeneratedSuiteFeedsRegistry(t *testing.T) {
	decls, err := Generate("https://example.com", &Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	r := registry.New()
	added, err := r.AddAll(decls)
	require.NoError(t, err)
	assert.Len(t, added, 10)
	assert.Equal(t, 10, r.Count())
}

func TestGenerateKeepsURLAsGiven(t *testing.T) {
	decls, err := Generate("  https://x.test/a b  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://x.test/a b", decls[0].API.Endpoint)
	assert.Equal(t, "https://x.test/a b", decls[5].UI.URL)
	assert.Equal(t, `const isValid = /^https?:\/\/.+/.test("https://x.test/a b");`, decls[6].Unit.Code)
	assert.Equal(t, "https://x.test/api/health", decls[1].API.Endpoint)
}
