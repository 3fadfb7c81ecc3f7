package flow

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ezyang/ghsim/internal/detect"
)

const (
	formWaitTimeout = 10 * time.Second
	loadWaitTimeout = 30 * time.Second
	settleDelay     = 500 * time.Millisecond
)

const (
	credentialSubmitControl = `input[type="submit"][value="Sign in"], button[type="submit"]`
	twoFactorSubmitControl  = `button[type="submit"], input[type="submit"]`
)

// otpSelectors are searched in order when submitting a 2FA code: app OTP,
// alternate app OTP id, SMS OTP, then the generic one-time-code input.
var otpSelectors = []string{
	`input[name="app_otp"]`,
	`input[id="app_totp"]`,
	`input[name="sms_otp"]`,
	`input[type="text"][autocomplete="one-time-code"]`,
}

// Operations performs the bounded UI interactions of the login flow. Each
// operation mutates only the remote page through the resource, then
// reclassifies; session state is interpreted and stored by the registry.
type Operations struct {
	classifier *detect.Classifier
	baseURL    string
	log        zerolog.Logger
}

// NewOperations wires the flow operations to a classifier. baseURL is the
// origin of the remote site, used when resolving post-login pages.
func NewOperations(classifier *detect.Classifier, baseURL string, log zerolog.Logger) *Operations {
	return &Operations{classifier: classifier, baseURL: baseURL, log: log}
}

// SubmitCredentials fills the login form, submits it and classifies the
// resulting page. A timed-out load wait is not a failure; the current DOM is
// classified as-is.
func (o *Operations) SubmitCredentials(res Resource, username, password string) detect.Result {
	o.log.Info().Str("username", username).Msg("submitting credentials")

	if err := res.WaitForSelector(detect.SelLoginInput, formWaitTimeout); err != nil {
		return unknownf("login form did not appear: %v", err)
	}
	if err := res.Fill(detect.SelLoginInput, username); err != nil {
		return unknownf("filling username: %v", err)
	}
	if err := res.Fill(detect.SelPasswordInput, password); err != nil {
		return unknownf("filling password: %v", err)
	}
	if err := res.Click(credentialSubmitControl); err != nil {
		return unknownf("activating submit: %v", err)
	}

	if err := res.WaitForLoad(loadWaitTimeout); err != nil {
		o.log.Debug().Err(err).Msg("load wait elapsed, classifying current DOM")
	}
	time.Sleep(settleDelay)

	result := o.classifier.Classify(res)
	o.log.Info().Str("state", string(result.State)).Str("error", result.ErrorMessage).Msg("credential submission result")
	return result
}

// SubmitTwoFactorCode fills the first present OTP input with the code,
// submits and classifies the resulting page. When no OTP input exists the
// operation reports Unknown without touching the page.
func (o *Operations) SubmitTwoFactorCode(res Resource, code string) detect.Result {
	o.log.Info().Int("code_length", len(code)).Msg("submitting 2FA code")

	var input string
	for _, sel := range otpSelectors {
		n, err := res.Count(sel)
		if err != nil {
			return unknownf("probing 2FA input: %v", err)
		}
		if n > 0 {
			input = sel
			break
		}
	}
	if input == "" {
		o.log.Error().Msg("no 2FA input field found")
		return detect.Result{State: detect.StateUnknown, ErrorMessage: "no 2FA input field found"}
	}

	if err := res.Fill(input, code); err != nil {
		return unknownf("filling 2FA code: %v", err)
	}
	if err := res.Click(twoFactorSubmitControl); err != nil {
		return unknownf("activating submit: %v", err)
	}

	if err := res.WaitForLoad(loadWaitTimeout); err != nil {
		o.log.Debug().Err(err).Msg("load wait elapsed, classifying current DOM")
	}
	time.Sleep(settleDelay)

	result := o.classifier.Classify(res)
	o.log.Info().Str("state", string(result.State)).Str("error", result.ErrorMessage).Msg("2FA submission result")
	return result
}

func unknownf(format string, args ...any) detect.Result {
	return detect.Result{
		State:        detect.StateUnknown,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}
