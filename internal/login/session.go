package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ezyang/ghsim/internal/flow"
)

// DefaultAccount is used when a caller does not name an account.
const DefaultAccount = "default"

// Client errors surfaced to the request layer.
var (
	ErrSessionNotFound     = errors.New("session not found or expired")
	ErrInvalidSessionState = errors.New("invalid session state")
)

// State is a session's position in the login flow. SubmittingCredentials and
// SubmittingTwoFactor are transient: entered and exited within a single
// operation call. A status read may observe them; a state transition never
// starts from them.
type State string

const (
	StateInitialized           State = "initialized"
	StateSubmittingCredentials State = "submitting_credentials"
	StateWaitingTwoFactor      State = "waiting_2fa"
	StateWaitingMobile         State = "waiting_mobile"
	StateSubmittingTwoFactor   State = "submitting_2fa"
	StateSuccess               State = "success"
	StateError                 State = "error"
	StateCaptcha               State = "captcha"
)

// Resource is the automation handle a session exclusively owns: the flow
// surface plus persistence and teardown. Close is called at most once per
// resource; the session guarantees it.
type Resource interface {
	flow.Resource

	// Snapshot serializes the browser storage state of the authenticated
	// session for the persister.
	Snapshot() ([]byte, error)

	// Screenshot captures the current page as PNG.
	Screenshot() ([]byte, error)

	// Close tears down the underlying automation runtime.
	Close() error
}

// Factory attaches a fresh automation resource, already navigated to the
// remote login page. The registry never constructs the runtime itself.
type Factory interface {
	NewResource(ctx context.Context) (Resource, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Resource, error)

func (f FactoryFunc) NewResource(ctx context.Context) (Resource, error) { return f(ctx) }

// Persister materializes durable credentials once a login succeeds and
// answers account-level auth status.
type Persister interface {
	// Save stores the storage-state snapshot and resolved username for the
	// account. An empty username is allowed.
	Save(account, username string, state []byte) error

	// Status reports whether the account has persisted credentials and the
	// username they were saved under.
	Status(account string) (authenticated bool, username string, err error)
}

// Session is one login attempt: the server-side record plus exclusive
// ownership of one automation resource. All fields below mu are guarded by
// it; the resource itself is only touched by the operation that holds busy.
type Session struct {
	ID        string
	Account   string
	CreatedAt time.Time

	mu                sync.Mutex
	state             State
	updatedAt         time.Time
	message           string
	errorMessage      string
	username          string
	twofaMethod       string
	verificationCode  string
	requiresTwoFactor bool
	busy              bool
	removed           bool
	released          bool

	resource Resource
	release  sync.Once
}

// Snapshot is a point-in-time copy of a session record, safe to hand to
// callers.
type Snapshot struct {
	ID                string
	Account           string
	State             State
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Message           string
	ErrorMessage      string
	Username          string
	TwofaMethod       string
	VerificationCode  string
	RequiresTwoFactor bool
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                s.ID,
		Account:           s.Account,
		State:             s.state,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.updatedAt,
		Message:           s.message,
		ErrorMessage:      s.errorMessage,
		Username:          s.username,
		TwofaMethod:       s.twofaMethod,
		VerificationCode:  s.verificationCode,
		RequiresTwoFactor: s.requiresTwoFactor,
	}
}

// Terminal reports whether the state can no longer change except by removal.
func (st State) Terminal() bool {
	return st == StateSuccess || st == StateError || st == StateCaptcha
}
