package flow

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezyang/ghsim/internal/detect"
)

// fakeResource is a scriptable page fixture. onClick lets a test flip the
// fixture into its post-submit state, onNavigate into a post-navigation one.
type fakeResource struct {
	mu     sync.Mutex
	url    string
	counts map[string]int
	texts  map[string]string
	attrs  map[string]string
	html   map[string]string

	fills      map[string]string
	clicks     []string
	diags      []string
	navs       []string
	loadErr    error
	fillErr    error
	onClick    func(r *fakeResource)
	onNavigate func(r *fakeResource, url string)
}

func newFakeResource() *fakeResource {
	return &fakeResource{
		url:    "https://github.com/login",
		counts: map[string]int{},
		texts:  map[string]string{},
		attrs:  map[string]string{},
		html:   map[string]string{},
		fills:  map[string]string{},
	}
}

// loginForm makes the fixture look like the credential page.
func (r *fakeResource) loginForm() *fakeResource {
	r.counts[detect.SelLoginInput] = 1
	r.counts[detect.SelPasswordInput] = 1
	return r
}

// reset clears every page feature, keeping interaction history.
func (r *fakeResource) reset() {
	r.counts = map[string]int{}
	r.texts = map[string]string{}
	r.attrs = map[string]string{}
	r.html = map[string]string{}
}

func (r *fakeResource) Count(selector string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[selector], nil
}

func (r *fakeResource) Attribute(selector, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attrs[selector+"|"+name], nil
}

func (r *fakeResource) Text(selector string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.texts[selector], nil
}

func (r *fakeResource) InnerHTML(selector string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html[selector], nil
}

func (r *fakeResource) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

func (r *fakeResource) Navigate(url string) error {
	r.mu.Lock()
	r.navs = append(r.navs, url)
	fn := r.onNavigate
	r.mu.Unlock()
	if fn != nil {
		fn(r, url)
	}
	return nil
}

func (r *fakeResource) WaitForSelector(selector string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[selector] > 0 {
		return nil
	}
	return fmt.Errorf("timeout waiting for %s", selector)
}

func (r *fakeResource) CaptureDiagnostic(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, label)
}

func (r *fakeResource) Fill(selector, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fillErr != nil {
		return r.fillErr
	}
	r.fills[selector] = value
	return nil
}

func (r *fakeResource) Click(selector string) error {
	r.mu.Lock()
	r.clicks = append(r.clicks, selector)
	fn := r.onClick
	r.mu.Unlock()
	if fn != nil {
		fn(r)
	}
	return nil
}

func (r *fakeResource) WaitForLoad(_ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadErr
}

func newTestOps() *Operations {
	return NewOperations(detect.NewClassifier(zerolog.Nop()), "https://github.com", zerolog.Nop())
}

func TestSubmitCredentialsReachesLoggedIn(t *testing.T) {
	res := newFakeResource().loginForm()
	res.onClick = func(r *fakeResource) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reset()
		r.counts[`button[aria-label="Open user navigation menu"]`] = 1
	}

	result := newTestOps().SubmitCredentials(res, "bob", "secret")
	assert.Equal(t, detect.StateLoggedIn, result.State)
	assert.Equal(t, "bob", res.fills[detect.SelLoginInput])
	assert.Equal(t, "secret", res.fills[detect.SelPasswordInput])
	require.Len(t, res.clicks, 1)
}

func TestSubmitCredentialsRejection(t *testing.T) {
	res := newFakeResource().loginForm()
	res.onClick = func(r *fakeResource) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reset()
		r.counts[".flash-error"] = 1
		r.texts[".flash-error"] = "Incorrect username or password."
	}

	result := newTestOps().SubmitCredentials(res, "bob", "wrong")
	assert.Equal(t, detect.StateLoginError, result.State)
	assert.Equal(t, "Incorrect username or password.", result.ErrorMessage)
}

func TestSubmitCredentialsLoadTimeoutStillClassifies(t *testing.T) {
	res := newFakeResource().loginForm()
	res.loadErr = fmt.Errorf("load wait failed: timeout")
	res.onClick = func(r *fakeResource) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reset()
		r.counts[`input[name="app_otp"], input[id="app_totp"]`] = 1
	}

	// The bounded load wait timing out is not a failure; the current DOM is
	// classified as-is.
	result := newTestOps().SubmitCredentials(res, "bob", "secret")
	assert.Equal(t, detect.StateTwoFactorApp, result.State)
}

func TestSubmitCredentialsMissingForm(t *testing.T) {
	res := newFakeResource()

	result := newTestOps().SubmitCredentials(res, "bob", "secret")
	assert.Equal(t, detect.StateUnknown, result.State)
	assert.Contains(t, result.ErrorMessage, "login form did not appear")
	assert.Empty(t, res.clicks)
}

func TestSubmitTwoFactorCodeNoInput(t *testing.T) {
	res := newFakeResource()

	result := newTestOps().SubmitTwoFactorCode(res, "123456")
	assert.Equal(t, detect.StateUnknown, result.State)
	assert.Equal(t, "no 2FA input field found", result.ErrorMessage)
	assert.Empty(t, res.fills)
	assert.Empty(t, res.clicks)
}

func TestSubmitTwoFactorCodeUsesFirstPresentInput(t *testing.T) {
	res := newFakeResource()
	res.counts[`input[name="app_otp"]`] = 1
	res.counts[`input[name="sms_otp"]`] = 1
	res.onClick = func(r *fakeResource) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reset()
		r.counts[`button[aria-label="Open user navigation menu"]`] = 1
	}

	result := newTestOps().SubmitTwoFactorCode(res, "123456")
	assert.Equal(t, detect.StateLoggedIn, result.State)
	assert.Equal(t, "123456", res.fills[`input[name="app_otp"]`])
	assert.NotContains(t, res.fills, `input[name="sms_otp"]`)
}

func TestSubmitTwoFactorCodeWrongCode(t *testing.T) {
	res := newFakeResource()
	res.counts[`input[name="sms_otp"]`] = 1
	res.onClick = func(r *fakeResource) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reset()
		r.counts[".flash-error"] = 1
		r.texts[".flash-error"] = "Two-factor authentication failed."
	}

	result := newTestOps().SubmitTwoFactorCode(res, "000000")
	assert.Equal(t, detect.StateLoginError, result.State)
	assert.Equal(t, "Two-factor authentication failed.", result.ErrorMessage)
}

func TestExtractUsernameFromAvatar(t *testing.T) {
	res := newFakeResource()
	res.counts[`button[aria-label="Open user navigation menu"] img`] = 1
	res.attrs[`button[aria-label="Open user navigation menu"] img|alt`] = "@octocat"

	username := newTestOps().ExtractUsername(res)
	assert.Equal(t, "octocat", username)
	assert.Empty(t, res.navs)
}

func TestExtractUsernameFromProfileMeta(t *testing.T) {
	res := newFakeResource()
	res.onNavigate = func(r *fakeResource, _ string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.counts[`meta[name="user-login"]`] = 1
		r.attrs[`meta[name="user-login"]|content`] = "hubot"
	}

	username := newTestOps().ExtractUsername(res)
	assert.Equal(t, "hubot", username)
	require.Len(t, res.navs, 1)
	assert.Equal(t, "https://github.com/settings/profile", res.navs[0])
}

func TestExtractUsernameAbsentIsNotAnError(t *testing.T) {
	res := newFakeResource()

	username := newTestOps().ExtractUsername(res)
	assert.Empty(t, username)
}
