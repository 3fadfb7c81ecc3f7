package login

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ezyang/ghsim/internal/detect"
	"github.com/ezyang/ghsim/internal/flow"
)

// Config bounds the registry's resource usage.
type Config struct {
	// SessionTTL is how long a session may exist before it is cancelled and
	// swept. Zero disables the sweep.
	SessionTTL time.Duration

	// MaxPerAccount caps concurrent login sessions per account.
	MaxPerAccount int64
}

// Manager owns all login sessions: it enforces the state-transition table,
// dispatches to the flow operations, and guarantees each session's exclusive
// ownership of its automation resource. Operations against one session are
// serialized; operations against different sessions proceed fully
// concurrently.
type Manager struct {
	sessions sync.Map // map[string]*Session

	mu    sync.RWMutex
	slots map[string]*semaphore.Weighted

	factory   Factory
	persister Persister
	ops       *flow.Operations

	ttl           time.Duration
	maxPerAccount int64
	log           zerolog.Logger
}

// NewManager creates a session registry.
func NewManager(factory Factory, persister Persister, ops *flow.Operations, cfg Config, log zerolog.Logger) *Manager {
	if cfg.MaxPerAccount <= 0 {
		cfg.MaxPerAccount = 3
	}
	return &Manager{
		slots:         make(map[string]*semaphore.Weighted),
		factory:       factory,
		persister:     persister,
		ops:           ops,
		ttl:           cfg.SessionTTL,
		maxPerAccount: cfg.MaxPerAccount,
		log:           log,
	}
}

// Create allocates a session id and attaches a fresh automation resource.
func (m *Manager) Create(ctx context.Context, account string) (Snapshot, error) {
	if account == "" {
		account = DefaultAccount
	}
	if err := m.acquireSlot(account); err != nil {
		return Snapshot{}, err
	}

	res, err := m.factory.NewResource(ctx)
	if err != nil {
		m.releaseSlot(account)
		return Snapshot{}, fmt.Errorf("attaching automation resource: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Account:   account,
		CreatedAt: now,
		state:     StateInitialized,
		updatedAt: now,
		message:   "Ready for credentials",
		resource:  res,
	}
	m.sessions.Store(s.ID, s)
	m.log.Info().Str("session", shortID(s.ID)).Str("account", account).Msg("login session created")

	if m.ttl > 0 {
		go m.expireAfter(s.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// SubmitCredentials drives Initialized through credential submission and maps
// the classified result onto the session.
func (m *Manager) SubmitCredentials(id, username, password string) (Snapshot, error) {
	s, err := m.beginOp(id, StateInitialized, StateSubmittingCredentials)
	if err != nil {
		return Snapshot{}, err
	}
	result := m.ops.SubmitCredentials(s.resource, username, password)
	return m.applyCredentialResult(s, result), nil
}

// SubmitTwoFactor drives WaitingTwoFactor through code submission. A wrong
// code returns the session to WaitingTwoFactor; retries are unlimited.
func (m *Manager) SubmitTwoFactor(id, code string) (Snapshot, error) {
	s, err := m.beginOp(id, StateWaitingTwoFactor, StateSubmittingTwoFactor)
	if err != nil {
		return Snapshot{}, err
	}
	result := m.ops.SubmitTwoFactorCode(s.resource, code)
	return m.applyTwoFactorResult(s, result), nil
}

// WaitMobile blocks the caller until the out-of-band approval completes,
// fails, or times out. The session stays in WaitingMobile for the duration;
// on timeout it remains there so the caller may retry the wait.
func (m *Manager) WaitMobile(id string, timeout time.Duration) (Snapshot, error) {
	s, err := m.beginOp(id, StateWaitingMobile, "")
	if err != nil {
		return Snapshot{}, err
	}
	result := m.ops.WaitForMobileApproval(s.resource, timeout, 0)
	return m.applyMobileResult(s, result), nil
}

// Cancel removes the session and releases its resource. Idempotent: unknown
// ids and repeated cancels succeed, and release wins races against any
// in-flight operation on the same session.
func (m *Manager) Cancel(id string) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return
	}
	s := v.(*Session)
	m.sessions.Delete(id)

	s.mu.Lock()
	s.removed = true
	s.mu.Unlock()

	m.releaseResource(s)
	m.log.Info().Str("session", shortID(id)).Msg("login session cancelled")
}

// Get returns a point-in-time copy of the session record.
func (m *Manager) Get(id string) (Snapshot, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	s := v.(*Session)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshotLocked(), nil
}

// Screenshot captures the session's current page. Rejected while another
// operation holds the resource, and once the resource has been released:
// a terminal session's record outlives its browser, which must never be
// touched again.
func (m *Manager) Screenshot(id string) ([]byte, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := v.(*Session)

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.released {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session resource released", ErrInvalidSessionState)
	}
	if s.busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: operation in progress", ErrInvalidSessionState)
	}
	s.busy = true
	s.mu.Unlock()

	data, err := s.resource.Screenshot()

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return data, nil
}

// AccountStatus is the registry-owned answer to "does this account still
// need a login".
type AccountStatus struct {
	Account       string
	Authenticated bool
	Username      string
}

// AccountStatus reports whether the account has persisted credentials.
func (m *Manager) AccountStatus(account string) (AccountStatus, error) {
	if account == "" {
		account = DefaultAccount
	}
	authenticated, username, err := m.persister.Status(account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("reading auth status: %w", err)
	}
	return AccountStatus{Account: account, Authenticated: authenticated, Username: username}, nil
}

// Shutdown cancels every live session and releases its resource.
func (m *Manager) Shutdown() {
	m.sessions.Range(func(key, _ any) bool {
		m.Cancel(key.(string))
		return true
	})
}

// beginOp serializes operations on one session. It verifies the required
// source state without mutating anything on rejection, marks the session
// busy, and optionally enters a transient state visible to status reads.
func (m *Manager) beginOp(id string, required, transient State) (*Session, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := v.(*Session)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return nil, ErrSessionNotFound
	}
	if s.busy {
		return nil, fmt.Errorf("%w: operation already in progress", ErrInvalidSessionState)
	}
	if s.state != required {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, s.state)
	}
	s.busy = true
	if transient != "" {
		s.state = transient
		s.updatedAt = time.Now()
	}
	return s, nil
}

// apply ends an operation: it clears busy and, unless the session was
// cancelled mid-flight, applies the mutation and stamps updatedAt.
func (m *Manager) apply(s *Session, fn func(*Session)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if !s.removed {
		fn(s)
		s.updatedAt = time.Now()
	}
	return s.snapshotLocked()
}

func (m *Manager) applyCredentialResult(s *Session, r detect.Result) Snapshot {
	switch r.State {
	case detect.StateLoggedIn:
		return m.persistSuccess(s)

	case detect.StateTwoFactorApp, detect.StateTwoFactorSms:
		return m.apply(s, func(s *Session) {
			s.state = StateWaitingTwoFactor
			s.requiresTwoFactor = true
			s.twofaMethod = r.TwofaMethod
			s.message = "Enter your 2FA code"
		})

	case detect.StateTwoFactorMobile:
		return m.apply(s, func(s *Session) {
			s.state = StateWaitingMobile
			s.requiresTwoFactor = true
			s.twofaMethod = detect.MethodMobile
			s.verificationCode = r.VerificationCode
			s.message = "Approve the login request on your GitHub Mobile app"
		})

	case detect.StateCaptcha:
		return m.apply(s, func(s *Session) {
			s.state = StateCaptcha
			s.errorMessage = orDefault(r.ErrorMessage, "CAPTCHA required")
		})

	default:
		// Security key, login error or unknown: terminal.
		return m.failTerminal(s, orDefault(r.ErrorMessage, "unknown page state after credentials"))
	}
}

func (m *Manager) applyTwoFactorResult(s *Session, r detect.Result) Snapshot {
	switch r.State {
	case detect.StateLoggedIn:
		return m.persistSuccess(s)

	case detect.StateLoginError, detect.StateTwoFactorApp, detect.StateTwoFactorSms:
		// Rejected code: either an explicit error banner, or the page is still
		// prompting for a code. Back to WaitingTwoFactor, unlimited retries.
		return m.apply(s, func(s *Session) {
			s.state = StateWaitingTwoFactor
			s.errorMessage = orDefault(r.ErrorMessage, "Invalid 2FA code, please try again")
			s.message = "Enter your 2FA code"
		})

	default:
		return m.failTerminal(s, orDefault(r.ErrorMessage, "unknown state after 2FA submission"))
	}
}

func (m *Manager) applyMobileResult(s *Session, r detect.Result) Snapshot {
	switch r.State {
	case detect.StateLoggedIn:
		return m.persistSuccess(s)

	case detect.StateTwoFactorMobile:
		// Timed out; the caller may retry the wait.
		return m.apply(s, func(s *Session) {
			s.state = StateWaitingMobile
			s.errorMessage = r.ErrorMessage
			s.message = "Mobile approval timed out. Try again."
		})

	default:
		// LoginError or any unexpected state.
		return m.failTerminal(s, orDefault(r.ErrorMessage, "unexpected state during mobile wait"))
	}
}

// persistSuccess hands the authenticated resource state to the persister.
// Username resolution is best effort; persistence failure is not.
func (m *Manager) persistSuccess(s *Session) Snapshot {
	username := m.ops.ExtractUsername(s.resource)
	state, err := s.resource.Snapshot()
	if err != nil {
		m.log.Error().Err(err).Str("session", shortID(s.ID)).Msg("serializing auth state")
		return m.failTerminal(s, "Failed to save auth state")
	}
	if err := m.persister.Save(s.Account, username, state); err != nil {
		m.log.Error().Err(err).Str("session", shortID(s.ID)).Msg("persisting auth state")
		return m.failTerminal(s, "Failed to save auth state")
	}

	m.log.Info().Str("session", shortID(s.ID)).Str("username", username).Msg("login successful, auth state saved")
	snap := m.apply(s, func(s *Session) {
		s.state = StateSuccess
		s.username = username
		s.message = "Login successful"
		s.errorMessage = ""
		s.requiresTwoFactor = false
		s.twofaMethod = ""
		s.verificationCode = ""
	})
	m.releaseResource(s)
	return snap
}

func (m *Manager) failTerminal(s *Session, msg string) Snapshot {
	snap := m.apply(s, func(s *Session) {
		s.state = StateError
		s.errorMessage = msg
		s.requiresTwoFactor = false
		s.twofaMethod = ""
		s.verificationCode = ""
	})
	m.releaseResource(s)
	return snap
}

// releaseResource closes the session's resource and frees its account slot.
// One-way and race-safe: the last releaser is a no-op.
func (m *Manager) releaseResource(s *Session) {
	s.release.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
		if err := s.resource.Close(); err != nil {
			m.log.Warn().Err(err).Str("session", shortID(s.ID)).Msg("closing automation resource")
		}
		m.releaseSlot(s.Account)
	})
}

func (m *Manager) acquireSlot(account string) error {
	m.mu.Lock()
	sem, ok := m.slots[account]
	if !ok {
		sem = semaphore.NewWeighted(m.maxPerAccount)
		m.slots[account] = sem
	}
	m.mu.Unlock()

	if !sem.TryAcquire(1) {
		return fmt.Errorf("concurrent login limit reached for account %s", account)
	}
	return nil
}

func (m *Manager) releaseSlot(account string) {
	m.mu.RLock()
	sem := m.slots[account]
	m.mu.RUnlock()
	if sem != nil {
		sem.Release(1)
	}
}

// expireAfter sweeps the session once its TTL lapses, whatever state it is
// in. Cancel is idempotent, so racing an explicit cancel is harmless.
func (m *Manager) expireAfter(id string) {
	timer := time.NewTimer(m.ttl)
	defer timer.Stop()
	<-timer.C

	if _, ok := m.sessions.Load(id); !ok {
		return
	}
	m.log.Info().Str("session", shortID(id)).Msg("session TTL reached, sweeping")
	m.Cancel(id)
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
