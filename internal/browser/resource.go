package browser

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Page is one session's exclusive automation resource: a dedicated browser,
// context and page. It implements the probe and interaction surfaces the
// login flow needs.
type Page struct {
	browser       playwright.Browser
	context       playwright.BrowserContext
	page          playwright.Page
	screenshotDir string
	log           zerolog.Logger
}

func (p *Page) Count(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *Page) Attribute(selector, name string) (string, error) {
	return p.page.Locator(selector).First().GetAttribute(name)
}

func (p *Page) Text(selector string) (string, error) {
	return p.page.Locator(selector).First().TextContent()
}

func (p *Page) InnerHTML(selector string) (string, error) {
	return p.page.Locator(selector).First().InnerHTML()
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *Page) WaitForSelector(selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (p *Page) WaitForLoad(timeout time.Duration) error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("load wait failed: %w", err)
	}
	return nil
}

func (p *Page) Fill(selector, value string) error {
	if err := p.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (p *Page) Click(selector string) error {
	if err := p.page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// CaptureDiagnostic saves a labelled screenshot for postmortem use. Best
// effort; failures are only logged.
func (p *Page) CaptureDiagnostic(label string) {
	path := filepath.Join(p.screenshotDir, fmt.Sprintf("ghsim_login_%s.png", label))
	if _, err := p.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)}); err != nil {
		p.log.Warn().Err(err).Str("label", label).Msg("diagnostic screenshot failed")
		return
	}
	p.log.Warn().Str("path", path).Msg("saved diagnostic screenshot")
}

// Screenshot captures the current page as PNG.
func (p *Page) Screenshot() ([]byte, error) {
	return p.page.Screenshot()
}

// Snapshot serializes the context's storage state (cookies, local storage)
// for the persister.
func (p *Page) Snapshot() ([]byte, error) {
	state, err := p.context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("reading storage state: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding storage state: %w", err)
	}
	return data, nil
}

// Close tears down the page, context and browser. Teardown continues past
// individual failures; the first error is returned.
func (p *Page) Close() error {
	var first error
	if err := p.page.Close(); err != nil && first == nil {
		first = err
	}
	if err := p.context.Close(); err != nil && first == nil {
		first = err
	}
	if err := p.browser.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
