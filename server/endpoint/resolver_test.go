package endpoint

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
)

type staticSource struct {
	cfg account.Config
	err error
}

func (s staticSource) Get() (account.Config, error) {
	return s.cfg, s.err
}

func TestResolve(t *testing.T) {
	t.Run("appends account id", func(t *testing.T) {
		u, err := Resolve("https://example.com", "acme")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/acme", u.String())
	})

	t.Run("keeps template path", func(t *testing.T) {
		u, err := Resolve("http://localhost:13000/portal", "team_1")
		require.NoError(t, err)
		assert.Equal(t, "localhost:13000", u.Host)
		assert.Equal(t, "/portal/team_1", u.Path)
	})

	tests := []struct {
		name     string
		template string
	}{
		{name: "no scheme", template: "not-a-url"},
		{name: "empty template", template: ""},
		{name: "scheme without host", template: "https:"},
		{name: "unparsable", template: "https://exa mple.com"},
		{name: "control character", template: "https://example.com\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Resolve(tt.template, "acme")
			assert.Nil(t, u)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestTransport_RoundTrip(t *testing.T) {
	t.Run("rewrites request to per-account url", func(t *testing.T) {
		var gotPath, gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		source := staticSource{cfg: account.Config{AccountID: "acme", AuthBaseURL: server.URL}}
		client := &http.Client{Transport: NewTransport(nil, source)}

		resp, err := client.Get("http://placeholder.invalid/ignored?x=1")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/acme", gotPath)
		assert.Empty(t, gotQuery)
	})

	t.Run("invalid template fails the request without sending it", func(t *testing.T) {
		called := false
		base := roundTripFunc(func(*http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("should not be called")
		})

		source := staticSource{cfg: account.Config{AccountID: "acme", AuthBaseURL: "not-a-url"}}
		req := httptest.NewRequest(http.MethodGet, "http://placeholder.invalid/", nil)

		resp, err := NewTransport(base, source).RoundTrip(req)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
		assert.False(t, called)
	})

	t.Run("store failure fails the request", func(t *testing.T) {
		source := staticSource{err: account.ErrPersistence}
		req := httptest.NewRequest(http.MethodGet, "http://placeholder.invalid/", nil)

		_, err := NewTransport(nil, source).RoundTrip(req)
		assert.ErrorIs(t, err, account.ErrPersistence)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
