package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buemura/redirhunt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_VulnerableRedirect(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": openRedirect("redirect", http.StatusFound),
		"google.com":  okHandler(),
	})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	require.NotNil(t, out.Evidence)
	assert.Equal(t, http.StatusFound, out.Evidence.StatusCode)
	assert.Equal(t, "https://example.com?redirect=http://google.com", out.Evidence.TestURL)
	assert.Equal(t, "http://google.com", out.Evidence.Location)
	assert.Equal(t, "http://google.com", out.Evidence.FinalURL)
	assert.Equal(t, types.RuleDestinationMatch, out.Evidence.Rule)
	assert.Equal(t, 1, out.Attempts)
	assert.Contains(t, DefaultUserAgents, out.Evidence.UserAgent)
}

func TestProber_EncodedVariantIsDecodedByServer(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": openRedirect("redirect", http.StatusMovedPermanently),
		"google.com":  okHandler(),
	})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingDotted})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	assert.Equal(t, "https://example.com?redirect=http%3A%2F%2Fgoogle%2Ecom", out.TestURL)
	assert.Equal(t, types.EncodingDotted, out.Evidence.Encoding)
	assert.Equal(t, http.StatusMovedPermanently, out.StatusCode)
}

func TestProber_NoRedirect(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{"example.com": okHandler()})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	assert.Equal(t, VerdictNotVulnerable, out.Verdict)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Nil(t, out.Evidence)
	assert.Equal(t, 1, stub.callsTo("example.com"))
}

func TestProber_RelativeRedirectIsNotVulnerable(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/local/path" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Header().Set("Location", "/local/path")
			w.WriteHeader(http.StatusFound)
		}),
	})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	assert.Equal(t, VerdictNotVulnerable, out.Verdict)
	assert.Equal(t, http.StatusFound, out.StatusCode)
}

func TestProber_EncodedRelativeLocationIsNotVulnerable(t *testing.T) {
	// Echoes the still-encoded query value, which the client reads as a
	// relative path on the target.
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dest, ok := strings.CutPrefix(r.URL.RawQuery, "redirect="); ok {
				w.Header().Set("Location", dest)
				w.WriteHeader(http.StatusFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}),
		"google.com": okHandler(),
	})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingDotted})

	assert.Equal(t, VerdictNotVulnerable, out.Verdict)
	assert.Equal(t, http.StatusFound, out.StatusCode)
	assert.Nil(t, out.Evidence)
	assert.Zero(t, stub.callsTo("google.com"))
}

func TestProber_RedirectLoopStopsAtHopLimit(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", path.Join("/", r.URL.Path, "hop"))
			w.WriteHeader(http.StatusFound)
		}),
	})
	cfg := testConfig(stub)
	cfg.MaxRedirects = 3
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	ex, err := prober.attempt(context.Background(), "https://example.com?redirect=x", DefaultUserAgents[0])
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hop/hop/hop", ex.finalURL)
	// One no-follow request, the replayed request and three hops.
	assert.Equal(t, 5, stub.callsTo("example.com"))

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})
	assert.Equal(t, VerdictNotVulnerable, out.Verdict)
	assert.Equal(t, http.StatusFound, out.StatusCode)
	assert.Equal(t, 10, stub.callsTo("example.com"))
}

func TestProber_CrossOriginRewrite(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "https://attacker.test/landing")
			w.WriteHeader(http.StatusTemporaryRedirect)
		}),
		"attacker.test": okHandler(),
	})
	cfg := testConfig(stub)
	cfg.Destinations = []string{"evil.com"}
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "evil.com", Encoding: types.EncodingRaw})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	assert.Equal(t, types.RuleCrossOrigin, out.Evidence.Rule)
	assert.Equal(t, "https://attacker.test/landing", out.Evidence.FinalURL)
}

func TestProber_BrokenChainResolvesToLastHop(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": openRedirect("redirect", http.StatusFound),
	})
	prober, err := NewProber(testConfig(stub))
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://unreachable.test/x", Encoding: types.EncodingRaw})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	assert.Equal(t, "http://unreachable.test/x", out.Evidence.FinalURL)
	assert.Equal(t, 1, out.Attempts)
}

func TestProber_TransportFailureExhaustsRetries(t *testing.T) {
	stub := newStubTransport(nil)
	cfg := testConfig(stub)
	cfg.MaxRetries = 2
	cfg.RequestDelay = 20 * time.Millisecond
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	start := time.Now()
	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})
	elapsed := time.Since(start)

	assert.Equal(t, VerdictFailed, out.Verdict)
	assert.Error(t, out.Err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, stub.callsTo("example.com"))
	assert.GreaterOrEqual(t, elapsed, 2*cfg.RequestDelay)
}

func TestProber_TimeoutExhaustsRetries(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(nil)
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 1
	cfg.RequestTimeout = 50 * time.Millisecond
	cfg.RequestDelay = 10 * time.Millisecond
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	start := time.Now()
	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	assert.Equal(t, VerdictFailed, out.Verdict)
	assert.Equal(t, 2, out.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), cfg.RequestDelay)
}

func TestProber_RateLimitBacksOffThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			openRedirect("redirect", http.StatusFound).ServeHTTP(w, r)
		}),
		"google.com": okHandler(),
	})
	cfg := testConfig(stub)
	cfg.RequestDelay = time.Millisecond
	cfg.RateLimitDelay = 40 * time.Millisecond
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	start := time.Now()
	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, out.Evidence.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), cfg.RateLimitDelay)
}

func TestProber_RateLimitExhaustsRetries(t *testing.T) {
	stub := newStubTransport(map[string]http.Handler{
		"example.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}),
	})
	cfg := testConfig(stub)
	cfg.MaxRetries = 2
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	assert.Equal(t, VerdictFailed, out.Verdict)
	assert.True(t, errors.Is(out.Err, ErrRateLimited))
	assert.Equal(t, 3, stub.callsTo("example.com"))
}

func TestProber_RealServers(t *testing.T) {
	attacker := httptest.NewServer(okHandler())
	defer attacker.Close()

	target := httptest.NewServer(openRedirect("next", http.StatusSeeOther))
	defer target.Close()

	cfg := testConfig(nil)
	cfg.BaseURL = target.URL
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	out := prober.Run(context.Background(), Probe{Parameter: "next", Destination: attacker.URL, Encoding: types.EncodingRaw})

	require.Equal(t, VerdictVulnerable, out.Verdict)
	assert.Equal(t, types.RuleDestinationMatch, out.Evidence.Rule)
	assert.Equal(t, http.StatusSeeOther, out.Evidence.StatusCode)
}

func TestProber_CancelledContext(t *testing.T) {
	stub := newStubTransport(nil)
	cfg := testConfig(stub)
	cfg.RequestDelay = time.Second
	prober, err := NewProber(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	out := prober.Run(ctx, Probe{Parameter: "redirect", Destination: "http://google.com", Encoding: types.EncodingRaw})

	assert.Equal(t, VerdictFailed, out.Verdict)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Less(t, time.Since(start), cfg.RequestDelay)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, Delay: time.Second, RateLimitDelay: 10 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(errors.New("connection reset")))
	assert.Equal(t, 10*time.Second, p.Backoff(ErrRateLimited))
}
