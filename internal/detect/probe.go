package detect

import "time"

// Probe is the capability surface the classifier needs from a live page.
// Implementations report failures as errors; the classifier absorbs them and
// they never propagate further up.
type Probe interface {
	// Count reports how many elements currently match the selector.
	Count(selector string) (int, error)

	// Attribute returns the named attribute of the first matching element.
	Attribute(selector, name string) (string, error)

	// Text returns the text content of the first matching element.
	Text(selector string) (string, error)

	// InnerHTML returns the inner HTML of the first matching element.
	InnerHTML(selector string) (string, error)

	// URL returns the current page URL.
	URL() string

	// Navigate loads the given URL and waits for DOM content.
	Navigate(url string) error

	// WaitForSelector blocks until the selector matches or the timeout
	// elapses, in which case it returns an error.
	WaitForSelector(selector string, timeout time.Duration) error

	// CaptureDiagnostic saves a labelled diagnostic artifact (typically a
	// screenshot) for postmortem use. Best effort; implementations log
	// failures and never return them.
	CaptureDiagnostic(label string)
}
