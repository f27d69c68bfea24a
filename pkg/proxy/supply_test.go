package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSupplyFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.2.3.4:8080"))
	}))
	defer server.Close()

	supply := NewHTTPSupply(server.URL)
	raw, err := supply.Fetch()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4:8080", raw)
}

func TestHTTPSupplyFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	supply := NewHTTPSupply(server.URL)
	_, err := supply.Fetch()
	assert.Error(t, err)
}

func TestHTTPSupplyEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip": "9.9.9.9", "port": 3128}`))
	}))
	defer server.Close()

	p, _ := newTestPool(t, Config{PoolSize: 3, Supply: NewHTTPSupply(server.URL)})

	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://9.9.9.9:3128", address)
}
