package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/fetch"
	"github.com/trendhaul/farfetch-scraper/internal/ratelimit"
)

// Fetcher renders product pages through a real browser engine. Heavier
// than the HTTP client, but it survives pages that hydrate their markup
// client-side and presents a far more convincing fingerprint.
type Fetcher struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	pacer    ratelimit.Pacer
	recorder ratelimit.Recorder
	timeout  time.Duration
	logger   *slog.Logger
}

func New(cfg config.ScraperConfig, pacer ratelimit.Pacer) (*Fetcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	userAgent := fetch.NewUserAgentPool(cfg.UseMobileUA).Random()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:       &userAgent,
		AcceptDownloads: playwright.Bool(false),
		Locale:          playwright.String("en-US"),
		Viewport:        viewportFor(cfg.UseMobileUA),
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": cfg.AcceptLanguage,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	f := &Fetcher{
		pw:      pw,
		browser: browser,
		context: browserContext,
		pacer:   pacer,
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "browser"),
	}
	if recorder, ok := pacer.(ratelimit.Recorder); ok {
		f.recorder = recorder
	}
	return f, nil
}

func viewportFor(mobile bool) *playwright.Size {
	if mobile {
		return &playwright.Size{Width: 390, Height: 844}
	}
	return &playwright.Size{Width: 1920, Height: 1080}
}

// Fetch navigates to the page and returns its rendered markup.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return "", err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()
	page.SetDefaultTimeout(float64(f.timeout.Milliseconds()))

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.timeout.Milliseconds())),
	})
	if err != nil {
		f.recordError()
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	f.dismissCookieBanner(page)
	f.humanize(page)

	content, err := page.Content()
	if err != nil {
		f.recordError()
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	if blocked(content) {
		f.recordError()
		return "", fmt.Errorf("access denied page served for %s", url)
	}
	f.recordSuccess()
	return content, nil
}

func (f *Fetcher) recordSuccess() {
	if f.recorder != nil {
		f.recorder.RecordSuccess()
	}
}

func (f *Fetcher) recordError() {
	if f.recorder != nil {
		f.recorder.RecordError()
	}
}

var cookieBannerSelectors = []string{
	"#onetrust-accept-btn-handler",
	`button[data-testid="cookie-accept"]`,
	`button:has-text("Accept")`,
}

// dismissCookieBanner clicks through the consent overlay when present.
// The overlay sits above the size selector and hides it from rendering.
func (f *Fetcher) dismissCookieBanner(page playwright.Page) {
	for _, selector := range cookieBannerSelectors {
		button := page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := button.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(2000),
		}); err != nil {
			f.logger.Debug("cookie banner click failed", "selector", selector, "error", err)
			continue
		}
		f.logger.Debug("cookie banner dismissed", "selector", selector)
		return
	}
}

// humanize scrolls a little so lazy-loaded gallery images enter the DOM.
func (f *Fetcher) humanize(page playwright.Page) {
	page.Mouse().Move(float64(200+rand.Intn(400)), float64(150+rand.Intn(300)))
	page.Evaluate(`window.scrollBy(0, 400 + Math.random() * 600)`)
	time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
}

func blocked(content string) bool {
	for _, marker := range []string{"Access Denied", "Request unsuccessful", "cf-challenge"} {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

func (f *Fetcher) Close() error {
	var errs []error
	if f.context != nil {
		if err := f.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
