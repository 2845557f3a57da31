package types

import "time"

// Encoding is the way a destination is written into the injected parameter.
type Encoding string

const (
	// EncodingRaw sends the destination as-is.
	EncodingRaw Encoding = "raw"
	// EncodingDotted percent-encodes the destination and also encodes every dot.
	EncodingDotted Encoding = "encoded"
)

// Encodings lists the variants generated for every (parameter, destination) pair, in order.
var Encodings = []Encoding{EncodingRaw, EncodingDotted}

// Rule names the classifier rule that accepted a redirect.
type Rule string

const (
	RuleDestinationMatch Rule = "destination-match"
	RuleCrossOrigin      Rule = "cross-origin"
)

// Evidence is the record kept for every probe confirmed as an open redirect.
type Evidence struct {
	Parameter   string    `json:"parameter"`
	Destination string    `json:"destination"`
	Encoding    Encoding  `json:"encoding"`
	TestURL     string    `json:"test_url"`
	Location    string    `json:"location"`
	FinalURL    string    `json:"final_url,omitempty"`
	StatusCode  int       `json:"status_code"`
	Rule        Rule      `json:"rule"`
	Attempts    int       `json:"attempts"`
	UserAgent   string    `json:"user_agent,omitempty"`
	FoundAt     time.Time `json:"found_at"`
}

// Summary is a read-only snapshot of the scan counters and findings.
type Summary struct {
	Tested     int        `json:"tested"`
	Vulnerable int        `json:"vulnerable"`
	Failed     int        `json:"failed"`
	Findings   []Evidence `json:"findings"`
}

// Report bundles everything the reporters need to render a finished scan.
type Report struct {
	Target       Target    `json:"target"`
	Parameters   []string  `json:"parameters"`
	Destinations int       `json:"destinations"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	Summary      Summary   `json:"summary"`
}

// Elapsed returns the wall-clock duration of the scan.
func (r Report) Elapsed() time.Duration {
	if r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
