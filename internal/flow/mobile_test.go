package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezyang/ghsim/internal/detect"
)

func mobilePending() *fakeResource {
	res := newFakeResource()
	res.url = "https://github.com/sessions/two-factor/mobile"
	return res
}

func TestWaitForMobileApprovalTimesOut(t *testing.T) {
	res := mobilePending()

	start := time.Now()
	result := newTestOps().WaitForMobileApproval(res, 500*time.Millisecond, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, detect.StateTwoFactorMobile, result.State)
	assert.Contains(t, result.ErrorMessage, "timed out")
	assert.Contains(t, res.diags, "mobile_2fa_timeout")
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestWaitForMobileApprovalSucceeds(t *testing.T) {
	res := newFakeResource()
	res.counts[`button[aria-label="Open user navigation menu"]`] = 1

	result := newTestOps().WaitForMobileApproval(res, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, detect.StateLoggedIn, result.State)
}

func TestWaitForMobileApprovalObservesDelayedApproval(t *testing.T) {
	res := mobilePending()
	go func() {
		time.Sleep(150 * time.Millisecond)
		res.mu.Lock()
		res.url = "https://github.com"
		res.counts[`button[aria-label="Open user navigation menu"]`] = 1
		res.mu.Unlock()
	}()

	result := newTestOps().WaitForMobileApproval(res, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, detect.StateLoggedIn, result.State)
}

func TestWaitForMobileApprovalReturnsErrorBanner(t *testing.T) {
	res := newFakeResource()
	res.counts[".flash-error"] = 1
	res.texts[".flash-error"] = "Unable to verify your device."

	result := newTestOps().WaitForMobileApproval(res, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, detect.StateLoginError, result.State)
	assert.Equal(t, "Unable to verify your device.", result.ErrorMessage)
}

func TestWaitForMobileApprovalStopsOnUnexpectedState(t *testing.T) {
	res := newFakeResource().loginForm()

	result := newTestOps().WaitForMobileApproval(res, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, detect.StateLoginForm, result.State)
}
