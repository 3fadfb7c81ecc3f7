package flow

import (
	"fmt"
	"time"

	"github.com/ezyang/ghsim/internal/detect"
)

// Defaults for the mobile approval wait.
const (
	DefaultMobileTimeout      = 120 * time.Second
	DefaultMobilePollInterval = 2 * time.Second
)

// WaitForMobileApproval polls the page until the out-of-band device approval
// completes, fails, or the timeout lapses. Elapsed time is checked before
// every classification, so the loop is strictly bounded. LoggedIn and
// LoginError return immediately; TwoFactorMobile and Unknown keep polling;
// any other state is an unexpected terminal result and is returned as-is
// rather than looped on.
func (o *Operations) WaitForMobileApproval(res Resource, timeout, pollInterval time.Duration) detect.Result {
	if timeout <= 0 {
		timeout = DefaultMobileTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultMobilePollInterval
	}
	o.log.Info().Dur("timeout", timeout).Dur("poll_interval", pollInterval).Msg("waiting for mobile 2FA approval")

	start := time.Now()
	for poll := 1; ; poll++ {
		if time.Since(start) > timeout {
			o.log.Warn().Dur("timeout", timeout).Msg("mobile 2FA approval timed out")
			res.CaptureDiagnostic("mobile_2fa_timeout")
			return detect.Result{
				State:        detect.StateTwoFactorMobile,
				TwofaMethod:  detect.MethodMobile,
				ErrorMessage: fmt.Sprintf("Mobile approval timed out after %d seconds. Please try again.", int(timeout.Seconds())),
			}
		}

		o.log.Debug().Int("poll", poll).Dur("elapsed", time.Since(start)).Msg("mobile 2FA poll")
		result := o.classifier.Classify(res)

		switch result.State {
		case detect.StateLoggedIn:
			o.log.Info().Msg("mobile 2FA approved")
			return result
		case detect.StateLoginError:
			o.log.Warn().Str("error", result.ErrorMessage).Msg("mobile 2FA failed")
			return result
		case detect.StateTwoFactorMobile, detect.StateUnknown:
			// Still pending, keep polling.
		default:
			o.log.Warn().Str("state", string(result.State)).Msg("unexpected state during mobile 2FA wait")
			return result
		}

		time.Sleep(pollInterval)
	}
}
