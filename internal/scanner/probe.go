package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/buemura/redirhunt/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prober executes single probes against the target.
type Prober struct {
	cfg       Config
	policy    RetryPolicy
	transport http.RoundTripper
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// exchange is what one attempt learned about the target.
type exchange struct {
	status   int
	location string // percent-decoded, for display
	redirect string // raw Location resolved against the test URL
	finalURL string
}

// NewProber builds a Prober from cfg, validating it first.
func NewProber(cfg Config) (*Prober, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
			DialContext: (&net.Dialer{
				Timeout: cfg.RequestTimeout,
			}).DialContext,
			MaxIdleConns:        cfg.MaxConcurrency * 2,
			MaxIdleConnsPerHost: cfg.MaxConcurrency,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	p := &Prober{
		cfg:       cfg,
		policy:    NewRetryPolicy(cfg),
		transport: transport,
		log:       cfg.logger(),
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p, nil
}

// Run executes one probe, retrying transport failures and 429 answers
// within the retry budget.
func (p *Prober) Run(ctx context.Context, probe Probe) Outcome {
	testURL := BuildTestURL(p.cfg.BaseURL, probe.Parameter, probe.Destination, probe.Encoding)
	out := Outcome{Probe: probe, TestURL: testURL}

	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		out.Attempts = attempt
		ua := p.userAgent()

		ex, err := p.attempt(ctx, testURL, ua)
		if err == nil && ex.status == http.StatusTooManyRequests {
			err = ErrRateLimited
		}
		if err == nil {
			return p.judge(out, ex, ua)
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		lastErr = err
		if attempt == p.policy.MaxAttempts {
			break
		}

		wait := p.policy.Backoff(err)
		p.log.Debug().
			Str("url", testURL).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("retrying probe")
		if err := sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	out.Verdict = VerdictFailed
	out.Err = lastErr
	return out
}

// attempt sends the probe without following redirects and, when the answer
// is a redirect, confirms it by replaying the request with redirects on.
func (p *Prober) attempt(ctx context.Context, testURL, ua string) (exchange, error) {
	client := &http.Client{
		Transport: p.transport,
		Timeout:   p.cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := p.do(ctx, client, testURL, ua)
	if err != nil {
		return exchange{}, err
	}
	drain(resp)

	ex := exchange{status: resp.StatusCode}
	if !isRedirect(resp.StatusCode) {
		return ex, nil
	}

	raw := resp.Header.Get("Location")
	ex.location = decodeLocation(raw)
	if ref, err := resp.Request.URL.Parse(raw); err == nil {
		ex.redirect = ref.String()
	}
	final, err := p.resolve(ctx, testURL, ua)
	if err != nil {
		return exchange{}, fmt.Errorf("confirming redirect: %w", err)
	}
	ex.finalURL = final
	return ex, nil
}

// resolve follows the redirect chain from testURL for at most MaxRedirects
// hops and returns the last URL the client was routed to. A chain that breaks
// after at least one hop still resolves to that hop.
func (p *Prober) resolve(ctx context.Context, testURL, ua string) (string, error) {
	var hops []string
	client := &http.Client{
		Transport: p.transport,
		Timeout:   p.cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > p.cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			hops = append(hops, req.URL.String())
			return nil
		},
	}

	resp, err := p.do(ctx, client, testURL, ua)
	if err != nil {
		if len(hops) > 0 && ctx.Err() == nil {
			last := hops[len(hops)-1]
			p.log.Debug().Str("url", testURL).Str("hop", last).Err(err).Msg("redirect chain broke, using last hop")
			return last, nil
		}
		return "", err
	}
	drain(resp)

	if len(hops) == 0 && resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	return resp.Request.URL.String(), nil
}

func (p *Prober) do(ctx context.Context, client *http.Client, target, ua string) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	return client.Do(req)
}

func (p *Prober) judge(out Outcome, ex exchange, ua string) Outcome {
	out.StatusCode = ex.status
	out.Verdict = VerdictNotVulnerable
	if !isRedirect(ex.status) {
		return out
	}

	rule, ok := Match(ex.redirect, ex.finalURL, out.Probe.Destination, p.cfg.BaseURL)
	if !ok {
		p.log.Debug().
			Str("url", out.TestURL).
			Str("location", ex.location).
			Str("final", ex.finalURL).
			Msg("redirect stays on target")
		return out
	}

	out.Verdict = VerdictVulnerable
	out.Evidence = &types.Evidence{
		Parameter:   out.Probe.Parameter,
		Destination: out.Probe.Destination,
		Encoding:    out.Probe.Encoding,
		TestURL:     out.TestURL,
		Location:    ex.location,
		FinalURL:    ex.finalURL,
		StatusCode:  ex.status,
		Rule:        rule,
		Attempts:    out.Attempts,
		UserAgent:   ua,
		FoundAt:     time.Now(),
	}
	return out
}

func (p *Prober) userAgent() string {
	agents := p.cfg.UserAgents
	return agents[rand.Intn(len(agents))]
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func decodeLocation(location string) string {
	if decoded, err := url.PathUnescape(location); err == nil {
		return decoded
	}
	return location
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
