package models

// StartLoginRequest begins a new login session.
type StartLoginRequest struct {
	Account string `json:"account,omitempty"`
}

// CredentialsRequest submits username and password.
type CredentialsRequest struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// TwoFactorRequest submits a 2FA code.
type TwoFactorRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// MobileWaitRequest waits for out-of-band mobile approval.
type MobileWaitRequest struct {
	SessionID      string `json:"sessionId"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// CancelRequest cancels a login session.
type CancelRequest struct {
	SessionID string `json:"sessionId"`
}

// LoginResponse is the status payload every login endpoint returns.
type LoginResponse struct {
	SessionID        string `json:"sessionId"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	Username         string `json:"username,omitempty"`
	TwofaMethod      string `json:"twofaMethod,omitempty"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

// Status tags carried by LoginResponse.
const (
	StatusInitialized   = "initialized"
	StatusSubmitting    = "submitting"
	StatusWaiting2FA    = "waiting_2fa"
	StatusWaitingMobile = "waiting_mobile"
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusCaptcha       = "captcha"
)

// AccountStatusResponse answers the needs-login check.
type AccountStatusResponse struct {
	Account    string `json:"account"`
	NeedsLogin bool   `json:"needsLogin"`
	Username   string `json:"username,omitempty"`
}

// ErrorResponse is the body of client-error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}
