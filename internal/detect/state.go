package detect

// PageState identifies what the remote login page currently shows.
type PageState string

const (
	StateLoginForm            PageState = "login_form"
	StateTwoFactorApp         PageState = "twofa_app"
	StateTwoFactorSms         PageState = "twofa_sms"
	StateTwoFactorMobile      PageState = "twofa_mobile"
	StateTwoFactorSecurityKey PageState = "twofa_security_key"
	StateLoggedIn             PageState = "logged_in"
	StateLoginError           PageState = "login_error"
	StateCaptcha              PageState = "captcha"
	StateUnknown              PageState = "unknown"
)

// Two-factor method names carried alongside the page state.
const (
	MethodApp         = "app"
	MethodSms         = "sms"
	MethodMobile      = "mobile"
	MethodSecurityKey = "security_key"
)

// Result is the outcome of one classification pass. A fresh Result is
// produced on every call and never mutated afterwards.
type Result struct {
	State        PageState
	ErrorMessage string
	TwofaMethod  string
	// VerificationCode holds the digits the user must confirm on their
	// device for mobile 2FA, when they could be extracted.
	VerificationCode string
}
