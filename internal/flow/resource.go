package flow

import (
	"time"

	"github.com/ezyang/ghsim/internal/detect"
)

// Resource is the automation handle a login session operates against: the
// classifier's probe surface plus the interaction primitives the flow
// operations need. A resource belongs to exactly one session for its whole
// lifetime.
type Resource interface {
	detect.Probe

	// Fill sets the value of the first element matching the selector.
	Fill(selector, value string) error

	// Click activates the first element matching the selector.
	Click(selector string) error

	// WaitForLoad blocks until the next DOM content load signal or the
	// timeout. A timeout is reported as an error but callers treat it as
	// non-fatal: the page may already be in its destination state.
	WaitForLoad(timeout time.Duration) error
}
