package detect

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// settleAfterFallback gives the mobile 2FA page a moment to render after the
// security-key fallback navigation.
const settleAfterFallback = 500 * time.Millisecond

// maxFallbackHops bounds the security-key → mobile navigate-and-reclassify
// recursion so a misbehaving page cannot loop the classifier.
const maxFallbackHops = 3

var twoDigitToken = regexp.MustCompile(`\b(\d{2})\b`)

// Classifier converts the raw state of a live page into one of the fixed
// PageState outcomes. Rules are evaluated in a strict first-match order;
// reordering them changes observable behavior (a logged-in indicator must
// beat a stray error banner, 2FA pages must beat their empty flash-error
// elements).
type Classifier struct {
	log   zerolog.Logger
	rules []rule
}

type rule struct {
	name string
	eval func(p Probe, depth int) (*Result, error)
}

// NewClassifier builds the ordered rule list.
func NewClassifier(log zerolog.Logger) *Classifier {
	c := &Classifier{log: log}
	c.rules = []rule{
		{"logged-in", c.ruleLoggedIn},
		{"captcha", c.ruleCaptcha},
		{"mobile-2fa-url", c.ruleMobileURL},
		{"mobile-2fa-elements", c.ruleMobileElements},
		{"security-key-url", c.ruleSecurityKeyURL},
		{"security-key-button", c.ruleSecurityKeyButton},
		{"app-otp-input", c.ruleAppOTP},
		{"sms-otp-input", c.ruleSmsOTP},
		{"generic-otp-input", c.ruleGenericOTP},
		{"flash-error", c.ruleFlashError},
		{"alt-error", c.ruleAltError},
		{"login-form", c.ruleLoginForm},
	}
	return c
}

// Classify inspects the page behind the probe and returns exactly one tagged
// outcome. Probe failures are absorbed into StateUnknown; they never
// propagate past the classifier.
func (c *Classifier) Classify(p Probe) Result {
	return c.classify(p, 0)
}

func (c *Classifier) classify(p Probe, depth int) Result {
	c.log.Debug().Str("url", p.URL()).Msg("classifying page state")

	for _, r := range c.rules {
		res, err := r.eval(p, depth)
		if err != nil {
			c.log.Warn().Err(err).Str("rule", r.name).Msg("probe failure during classification")
			return Result{
				State:        StateUnknown,
				ErrorMessage: fmt.Sprintf("error detecting page state: %v", err),
			}
		}
		if res != nil {
			c.log.Debug().Str("rule", r.name).Str("state", string(res.State)).Msg("page state matched")
			return *res
		}
	}

	c.log.Warn().Str("url", p.URL()).Msg("unknown page state")
	p.CaptureDiagnostic("unknown_state")
	return Result{State: StateUnknown}
}

func (c *Classifier) ruleLoggedIn(p Probe, _ int) (*Result, error) {
	n, err := p.Count(selUserMenu)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &Result{State: StateLoggedIn}, nil
}

func (c *Classifier) ruleCaptcha(p Probe, _ int) (*Result, error) {
	for _, sel := range captchaSelectors {
		n, err := p.Count(sel)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			c.log.Warn().Str("selector", sel).Msg("captcha challenge detected")
			return &Result{State: StateCaptcha, ErrorMessage: captchaMessage}, nil
		}
	}
	return nil, nil
}

func (c *Classifier) ruleMobileURL(p Probe, _ int) (*Result, error) {
	if !strings.Contains(p.URL(), "two-factor/mobile") {
		return nil, nil
	}
	// Absence of a code is not an error; the page sometimes renders it late
	// or not at all.
	code := c.extractVerificationCode(p)
	return &Result{
		State:            StateTwoFactorMobile,
		TwofaMethod:      MethodMobile,
		VerificationCode: code,
	}, nil
}

func (c *Classifier) ruleMobileElements(p Probe, _ int) (*Result, error) {
	for _, sel := range mobileSelectors {
		n, err := p.Count(sel)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return &Result{State: StateTwoFactorMobile, TwofaMethod: MethodMobile}, nil
		}
	}
	return nil, nil
}

// ruleSecurityKeyURL handles the WebAuthn challenge page. When the page
// offers a "use GitHub Mobile" link the classifier follows it and
// reclassifies the destination, so callers see the fallback transparently.
func (c *Classifier) ruleSecurityKeyURL(p Probe, depth int) (*Result, error) {
	current := p.URL()
	if !strings.Contains(current, "two-factor/webauthn") && !strings.Contains(current, "two-factor/security") {
		return nil, nil
	}

	n, err := p.Count(selMobileLink)
	if err != nil {
		return nil, err
	}
	if n > 0 && depth < maxFallbackHops {
		href, err := p.Attribute(selMobileLink, "href")
		if err != nil {
			return nil, err
		}
		if href != "" {
			target := resolveHref(current, href)
			c.log.Warn().Str("target", target).Msg("security key page, switching to mobile 2FA")
			if err := p.Navigate(target); err != nil {
				return nil, err
			}
			time.Sleep(settleAfterFallback)
			res := c.classify(p, depth+1)
			return &res, nil
		}
	}

	c.log.Warn().Msg("security key 2FA detected, not supported")
	p.CaptureDiagnostic("security_key_2fa")
	return &Result{
		State:        StateTwoFactorSecurityKey,
		ErrorMessage: securityKeyMessage,
		TwofaMethod:  MethodSecurityKey,
	}, nil
}

func (c *Classifier) ruleSecurityKeyButton(p Probe, _ int) (*Result, error) {
	n, err := p.Count(selSecurityKeyButton)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &Result{
		State:        StateTwoFactorSecurityKey,
		ErrorMessage: securityKeyMessage,
		TwofaMethod:  MethodSecurityKey,
	}, nil
}

func (c *Classifier) ruleAppOTP(p Probe, _ int) (*Result, error) {
	n, err := p.Count(selAppOTPInput)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &Result{State: StateTwoFactorApp, TwofaMethod: MethodApp}, nil
}

func (c *Classifier) ruleSmsOTP(p Probe, _ int) (*Result, error) {
	marked, err := c.hasTwoFactorMarker(p)
	if err != nil || !marked {
		return nil, err
	}
	n, err := p.Count(selSmsOTPInput)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &Result{State: StateTwoFactorSms, TwofaMethod: MethodSms}, nil
}

func (c *Classifier) ruleGenericOTP(p Probe, _ int) (*Result, error) {
	marked, err := c.hasTwoFactorMarker(p)
	if err != nil || !marked {
		return nil, err
	}
	n, err := p.Count(selGenericOTPInput)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &Result{State: StateTwoFactorApp, TwofaMethod: MethodApp}, nil
}

func (c *Classifier) ruleFlashError(p Probe, _ int) (*Result, error) {
	return c.errorBanner(p, selFlashError)
}

func (c *Classifier) ruleAltError(p Probe, _ int) (*Result, error) {
	for _, sel := range altErrorSelectors {
		res, err := c.errorBanner(p, sel)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

// errorBanner reports a LoginError only for banners with actual text content.
// 2FA pages carry empty flash-error elements, which must be ignored.
func (c *Classifier) errorBanner(p Probe, sel string) (*Result, error) {
	n, err := p.Count(sel)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	text, err := p.Text(sel)
	if err != nil {
		return nil, err
	}
	msg := strings.TrimSpace(text)
	if msg == "" {
		return nil, nil
	}
	c.log.Warn().Str("selector", sel).Str("message", msg).Msg("login error banner")
	p.CaptureDiagnostic("login_error")
	return &Result{State: StateLoginError, ErrorMessage: msg}, nil
}

func (c *Classifier) ruleLoginForm(p Probe, _ int) (*Result, error) {
	logins, err := p.Count(SelLoginInput)
	if err != nil {
		return nil, err
	}
	passwords, err := p.Count(SelPasswordInput)
	if err != nil {
		return nil, err
	}
	if logins > 0 && passwords > 0 {
		return &Result{State: StateLoginForm}, nil
	}
	return nil, nil
}

func (c *Classifier) hasTwoFactorMarker(p Probe) (bool, error) {
	html, err := p.InnerHTML("html")
	if err != nil {
		return false, err
	}
	text := strings.ToLower(html)
	return strings.Contains(text, "two-factor") || strings.Contains(text, "authentication code"), nil
}

// extractVerificationCode pulls the digits shown on the mobile 2FA page for
// the user to confirm on their device. Explicitly heuristic: the final
// fallback takes the first standalone two-digit token in the page text,
// which can collide with unrelated numbers. Best effort, not a guarantee.
func (c *Classifier) extractVerificationCode(p Probe) string {
	for _, sel := range verificationCodeSelectors {
		n, err := p.Count(sel)
		if err != nil || n == 0 {
			continue
		}
		text, err := p.Text(sel)
		if err != nil {
			continue
		}
		digits := stripNonDigits(text)
		if len(digits) >= 2 {
			c.log.Debug().Str("selector", sel).Str("code", digits).Msg("verification code found")
			return digits
		}
	}

	body, err := p.Text("body")
	if err != nil {
		return ""
	}
	if m := twoDigitToken.FindString(body); m != "" {
		c.log.Debug().Str("code", m).Msg("verification code found via text scan")
		return m
	}
	c.log.Warn().Msg("no verification code found on mobile 2FA page")
	return ""
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveHref turns a possibly relative link target into an absolute URL
// against the current page.
func resolveHref(current, href string) string {
	base, err := url.Parse(current)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
