package guard

import "time"

// Kind names a guard decision.
type Kind string

const (
	LoopFlagged      Kind = "loop_flagged"
	LoopNotFlagged   Kind = "loop_not_flagged"
	RequestCancelled Kind = "request_cancelled"
	RequestAllowed   Kind = "request_allowed"
	HSTSEnabled      Kind = "hsts_enabled"
	HSTSDisabled     Kind = "hsts_disabled"
	HSTSExisting     Kind = "hsts_existing"
	HSTSIgnored      Kind = "hsts_ignored"
)

var knownKinds = map[Kind]bool{
	LoopFlagged:      true,
	LoopNotFlagged:   true,
	RequestCancelled: true,
	RequestAllowed:   true,
	HSTSEnabled:      true,
	HSTSDisabled:     true,
	HSTSExisting:     true,
	HSTSIgnored:      true,
}

// Known reports whether k is a decision the guard can make.
func (k Kind) Known() bool { return knownKinds[k] }

// Decision is one logged policy decision.
type Decision struct {
	Time      time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	RequestID string    `json:"request_id"`
	URL       string    `json:"url"`
	Detail    string    `json:"detail,omitempty"`
}

// RedirectVerdict is the classifier's outcome for one redirect.
type RedirectVerdict string

const (
	// RedirectIgnored: the target is not plain http.
	RedirectIgnored RedirectVerdict = "ignored"
	// RedirectAlreadyFlagged: the chain was classified by an earlier hop.
	RedirectAlreadyFlagged RedirectVerdict = "already_flagged"
	// RedirectFlagged: same-resource downgrade, request marked.
	RedirectFlagged RedirectVerdict = "flagged"
	// RedirectNotFlagged: the target differs in more than the scheme.
	RedirectNotFlagged RedirectVerdict = "not_flagged"
)

// AdmitOutcome is the admission filter's outcome for one http request.
type AdmitOutcome string

const (
	AdmitPassthrough AdmitOutcome = "passthrough"
	AdmitAllowed     AdmitOutcome = "allow"
	AdmitCancelled   AdmitOutcome = "cancel"
)

// Admission tells the host whether to cancel a plain-http request.
type Admission struct {
	Cancel  bool
	Outcome AdmitOutcome
}

// HeaderOutcome is the synthesizer's outcome for one https response.
type HeaderOutcome string

const (
	HeaderEnabled  HeaderOutcome = "enabled"
	HeaderDisabled HeaderOutcome = "disabled"
	HeaderExisting HeaderOutcome = "existing"
	HeaderSkipped  HeaderOutcome = "skipped"
)

// HeaderDecision carries the synthesizer result. When Changed is false the
// host keeps the original headers; otherwise Headers replaces them.
type HeaderDecision struct {
	Changed      bool
	Headers      []Header
	Outcome      HeaderOutcome
	ForceDisable bool
}
