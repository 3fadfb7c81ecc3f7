package detect

// Selectors probed during classification. They track GitHub's login UI as it
// exists today and are best-effort heuristics, not a contract with the
// remote site.
const (
	SelLoginInput    = `input[name="login"], input#login_field`
	SelPasswordInput = `input[name="password"], input#password`

	selUserMenu          = `button[aria-label="Open user navigation menu"]`
	selFlashError        = ".flash-error"
	selAppOTPInput       = `input[name="app_otp"], input[id="app_totp"]`
	selSmsOTPInput       = `input[name="sms_otp"]`
	selGenericOTPInput   = `input[type="text"][autocomplete="one-time-code"]`
	selSecurityKeyButton = `button[data-action="click:webauthn-get#start"]`
	selMobileLink        = `a[href*='two-factor/mobile']`
)

var captchaSelectors = []string{
	`iframe[src*="captcha"]`,
	`iframe[src*="recaptcha"]`,
	`div[class*="captcha"]`,
	"#captcha-container",
}

// Mobile 2FA pages are also recognizable by their elements alone, without a
// URL match.
var mobileSelectors = []string{
	`[data-target='sudo-credential-options.mobileOption']`,
	`button[data-action*='mobile']`,
	".js-mobile-credential-option",
}

// Errors sometimes surface outside .flash-error.
var altErrorSelectors = []string{
	".js-flash-alert",
	"#js-flash-container .flash",
}

// Tried in order when extracting the confirmation digits from the mobile 2FA
// page.
var verificationCodeSelectors = []string{
	".js-verification-code",
	`[data-target='device-verification.number']`,
	".verification-code",
	".auth-form-body strong",
	".Box-body strong",
	"div.text-center strong",
	".flash strong",
}

const (
	captchaMessage     = "CAPTCHA required. Complete the login manually in a headed browser."
	securityKeyMessage = "Security key 2FA not supported. Please configure an authenticator app in your account settings."
)
