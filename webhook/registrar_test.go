package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPostsTokenOverSelfSignedTLS(t *testing.T) {
	received := make(chan map[string]string, 1)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/setWebhook", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// httptest.NewTLSServer uses a self-signed certificate; the registrar
	// must accept it without extra trust configuration.
	reg := NewRegistrar(srv.URL)
	require.NoError(t, reg.register("555:Eee"))

	select {
	case payload := <-received:
		assert.Equal(t, map[string]string{"token": "555:Eee"}, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not receive the registration")
	}
}

func TestRegisterReportsServiceFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := NewRegistrar(srv.URL)
	err := reg.register("666:Fff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
