package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/config"
)

func TestCORS_AllowedOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{name: "default allows public url", origin: "https://health.example.org", want: "https://health.example.org"},
		{name: "default refuses others", origin: "https://evil.example.com", want: ""},
		{name: "explicit list", origins: []string{"https://admin.example.org"}, origin: "https://admin.example.org", want: "https://admin.example.org"},
		{name: "explicit list refuses public url", origins: []string{"https://admin.example.org"}, origin: "https://health.example.org", want: ""},
		{name: "wildcard reflects", origins: []string{"*"}, origin: "https://evil.example.com", want: "https://evil.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupServer(t, func(c *config.Config) { c.Server.CORSOrigins = tt.origins })

			req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/api/v1/health", nil)
			require.NoError(t, err)

			req.Header.Set("Origin", tt.origin)

			resp, err := ts.http.Client().Do(req)
			require.NoError(t, err)

			t.Cleanup(func() { _ = resp.Body.Close() })

			assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestPublicOrigin(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://health.example.org", want: "https://health.example.org"},
		{raw: "https://health.example.org:8443/ar/", want: "https://health.example.org:8443"},
		{raw: "health.example.org", want: ""},
		{raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, publicOrigin(tt.raw))
		})
	}
}
