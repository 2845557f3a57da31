package scanner

import (
	"sync"

	"github.com/buemura/redirhunt/pkg/types"
)

// Results accumulates scan counters and findings. It is safe for concurrent use.
type Results struct {
	mu         sync.Mutex
	tested     int
	vulnerable int
	failed     int
	findings   []types.Evidence
}

// NewResults creates an empty accumulator.
func NewResults() *Results {
	return &Results{}
}

// Dispatched counts a probe once, however many attempts it later takes.
func (r *Results) Dispatched() {
	r.mu.Lock()
	r.tested++
	r.mu.Unlock()
}

// Record folds a resolved outcome into the counters. A finding and its
// counter are updated under the same lock so len(findings) == vulnerable.
func (r *Results) Record(out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch out.Verdict {
	case VerdictVulnerable:
		if out.Evidence == nil {
			return
		}
		r.findings = append(r.findings, *out.Evidence)
		r.vulnerable++
	case VerdictFailed:
		r.failed++
	}
}

// Snapshot returns a copy that later updates cannot modify.
func (r *Results) Snapshot() types.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	findings := make([]types.Evidence, len(r.findings))
	copy(findings, r.findings)
	return types.Summary{
		Tested:     r.tested,
		Vulnerable: r.vulnerable,
		Failed:     r.failed,
		Findings:   findings,
	}
}
