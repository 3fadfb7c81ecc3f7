// Package browser implements the automation resource over Playwright.
package browser

import (
	"context"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Config controls how browser resources are created.
type Config struct {
	// Headless launches Chromium without a visible window.
	Headless bool

	// LoginURL is the page every new resource starts on.
	LoginURL string

	// ScreenshotDir receives diagnostic screenshots.
	ScreenshotDir string
}

// Launcher owns the Playwright runtime and attaches fresh pages already
// navigated to the login URL. One launcher serves all sessions; each
// resource gets its own browser, context and page.
type Launcher struct {
	pw  *playwright.Playwright
	cfg Config
	log zerolog.Logger
}

// NewLauncher installs browsers if needed and starts the Playwright driver.
func NewLauncher(cfg Config, log zerolog.Logger) (*Launcher, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("installing playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}
	log.Info().Str("login_url", cfg.LoginURL).Bool("headless", cfg.Headless).Msg("playwright runtime ready")
	return &Launcher{pw: pw, cfg: cfg, log: log}, nil
}

// NewResource launches a browser, opens the login page and returns the
// attached resource.
func (l *Launcher) NewResource(ctx context.Context) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.cfg.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 800},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	l.log.Info().Str("url", l.cfg.LoginURL).Msg("navigating to login page")
	if _, err := page.Goto(l.cfg.LoginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("opening login page: %w", err)
	}

	return &Page{
		browser:       browser,
		context:       browserCtx,
		page:          page,
		screenshotDir: l.cfg.ScreenshotDir,
		log:           l.log,
	}, nil
}

// Close stops the Playwright driver. Resources created by the launcher must
// be closed first.
func (l *Launcher) Close() error {
	return l.pw.Stop()
}
