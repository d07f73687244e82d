// SPDX-License-Identifier: AGPL-3.0-or-later
package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisfw/masklink/internal/domain/models"
)

func TestDomainAllowedEmptyAllowlistPermitsEverything(t *testing.T) {
	assert.True(t, domainAllowed("https://anywhere.example.com/path", nil))
}

func TestDomainAllowedRestrictsToListedOrigins(t *testing.T) {
	allowed := []string{"https://trusted.example.com"}
	assert.True(t, domainAllowed("https://trusted.example.com/resources/1", allowed))
	assert.False(t, domainAllowed("https://evil.example.com/resources/1", allowed))
}

func TestResolveReturnsSuppliedConnectionUnchanged(t *testing.T) {
	conn := &fakeTestConnection{}
	resolved, err := Resolve(ResolveOptions{Connection: conn})
	require.NoError(t, err)
	assert.Same(t, conn, resolved)
}

func TestResolveRequiresCredentialsWhenNoConnectionSupplied(t *testing.T) {
	_, err := Resolve(ResolveOptions{})
	assert.ErrorIs(t, err, models.ErrMissingCredentials)
}

func TestResolveRejectsDisallowedDomain(t *testing.T) {
	_, err := Resolve(ResolveOptions{
		Token:          "tok",
		Domain:         "https://evil.example.com",
		AllowedDomains: []string{"https://trusted.example.com"},
	})
	assert.Error(t, err)
}

func TestHTTPConnectionGetDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"here":"here"}`))
	}))
	defer server.Close()

	conn, err := Resolve(ResolveOptions{Token: "tok", Domain: server.URL})
	require.NoError(t, err)

	doc, err := conn.Get(context.Background(), server.URL+"/resources/1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"here": "here"}, doc)
}

func TestHTTPConnectionGetSurfacesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	conn, err := Resolve(ResolveOptions{Token: "tok", Domain: server.URL})
	require.NoError(t, err)

	_, err = conn.Get(context.Background(), server.URL+"/resources/missing")
	require.Error(t, err)
	assert.True(t, NotFound(err))
}

type fakeTestConnection struct{}

func (f *fakeTestConnection) Get(_ context.Context, _ string) (models.JSON, error) {
	return nil, nil
}
func (f *fakeTestConnection) Put(_ context.Context, _ string, _ models.JSON, _ map[string]string) (http.Header, error) {
	return nil, nil
}
func (f *fakeTestConnection) Post(_ context.Context, _ string, _ models.JSON, _ map[string]string) (http.Header, error) {
	return nil, nil
}
func (f *fakeTestConnection) Domain() string { return "" }
