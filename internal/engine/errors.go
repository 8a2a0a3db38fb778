package engine

import "fmt"

// Kind classifies engine failures so the transport layer can map them onto
// response codes without string matching.
type Kind int

const (
	// KindInput marks malformed or unsupported signals. Never retried.
	KindInput Kind = iota + 1
	// KindThrottle marks cooldown blocks. Retry later; no state mutated.
	KindThrottle
	// KindQuote marks price resolution failures. No partial state written.
	KindQuote
	// KindSizing marks invalid price or degenerate sizing inputs.
	KindSizing
	// KindExecution marks broker rejections and transport failures. The
	// position ledger and trade records remain untouched.
	KindExecution
	// KindLedger marks ledger read/write failures.
	KindLedger
)

// Error is a classified engine failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }
