package scanner

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// stubTransport routes requests to in-memory handlers by hostname, so tests
// can use real-looking hosts such as google.com without touching the network.
// Unknown hosts fail like a DNS error.
type stubTransport struct {
	hosts map[string]http.Handler
	delay time.Duration

	mu       sync.Mutex
	calls    map[string]int
	agents   []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newStubTransport(hosts map[string]http.Handler) *stubTransport {
	return &stubTransport{hosts: hosts, calls: make(map[string]int)}
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	host := req.URL.Hostname()
	s.mu.Lock()
	s.calls[host]++
	s.agents = append(s.agents, req.Header.Get("User-Agent"))
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	h, ok := s.hosts[host]
	if !ok {
		return nil, fmt.Errorf("dial tcp: lookup %s: no such host", host)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (s *stubTransport) callsTo(host string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[host]
}

// openRedirect redirects to whatever the named query parameter holds.
func openRedirect(param string, code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dest := r.URL.Query().Get(param); dest != "" {
			w.Header().Set("Location", dest)
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testConfig(transport http.RoundTripper) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://example.com"
	cfg.Parameters = []string{"redirect"}
	cfg.Destinations = []string{"http://google.com"}
	cfg.RequestDelay = time.Millisecond
	cfg.RateLimitDelay = 5 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	cfg.Transport = transport
	return cfg
}
