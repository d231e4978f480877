// Package scraper drives a live Chromium tab through go-rod.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/reviewcrawl/config"
	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
	"github.com/ysmood/gson"
)

// Session owns one browser process and the single tab a crawler drives.
// It implements page.Page.
type Session struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ page.Page = (*Session)(nil)

// Open launches Chromium and prepares a stealth tab.
//
// Stealth JS and the hijack router are installed before any navigation,
// otherwise they only take effect for later documents.
func Open(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to open tab", err)
	}

	if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
		}).Call(p); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("failed to set viewport", "error", err)
	}

	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	return &Session{
		launcher:   l,
		browser:    browser,
		page:       p,
		router:     setupHijack(p, cfg.BlockedResourceTypes),
		navTimeout: navTimeout,
	}, nil
}

// Navigate loads url and waits for the DOM to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return navigationError(ctx, err, url)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// navigationError reports the navigation timeout firing as a navigation
// failure. Only cancellation of the caller's ctx becomes CANCELED.
func navigationError(ctx context.Context, err error, url string) error {
	msg := "navigation to " + url + " failed"
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return models.NewCrawlError(models.ErrCodeNavigation, msg, err)
	}
	return models.Categorize(err, models.ErrCodeNavigation, msg)
}

// Find queries the whole document. Rod's Elements and ElementsX return an
// empty list without waiting when nothing matches.
func (s *Session) Find(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	p := s.page.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	if sel.Kind == page.KindXPath {
		els, err = p.ElementsX(sel.Expr)
	} else {
		els, err = p.Elements(sel.Expr)
	}
	if err != nil {
		return nil, models.Categorize(err, models.ErrCodeExtraction, "query "+sel.String()+" failed")
	}
	return wrap(els), nil
}

// Wait sleeps for d unless ctx ends first.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	return page.Sleep(ctx, d)
}

// Close closes the tab, stops the hijack router and kills the browser.
// Only the first call does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				slog.Debug("hijack router stop failed", "error", err)
			}
		}
		if err := s.page.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
		s.closeErr = s.browser.Close()
		s.launcher.Kill()
		slog.Info("browser session closed")
	})
	return s.closeErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
