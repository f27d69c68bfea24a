package proxy

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// supplyTimeout bounds the supply endpoint round-trip so a slow vendor
// cannot stall Acquire callers.
const supplyTimeout = 5 * time.Second

// HTTPSupply fetches raw proxy descriptors from an HTTP API endpoint.
type HTTPSupply struct {
	url    string
	client *http.Client
}

// NewHTTPSupply creates a supply backed by the given API URL.
func NewHTTPSupply(url string) *HTTPSupply {
	return &HTTPSupply{
		url: url,
		client: &http.Client{
			Timeout: supplyTimeout,
		},
	}
}

// Fetch retrieves one raw descriptor from the supply endpoint.
func (s *HTTPSupply) Fetch() (string, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return "", fmt.Errorf("proxy supply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy supply returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("proxy supply body unreadable: %w", err)
	}

	return string(body), nil
}
