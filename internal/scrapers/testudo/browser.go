package testudo

import (
	"context"
	"fmt"
	"sync"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/section"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_browser_fetch_course_markup = "browser.fetch-course-markup"
)

// resultsSelector matches once testudo has rendered either sections or the
// empty results page.
const resultsSelector = ".sections-container, #courses-page, .no-courses-message"

type BrowserConfig struct {
	// RemoteURL is the devtools websocket of an already running chrome,
	// a local headless chrome is launched when empty.
	RemoteURL string `json:"remote_url"`
}

// BrowserFetcher loads search pages in a stealth headless chrome tab, it is
// used when plain HTTP requests get blocked.
type BrowserFetcher struct {
	config  Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	time    chrono.TimeAPI
	tel     telemetry.API

	// chrome tabs are heavy, pages are loaded one at a time.
	mutex sync.Mutex
}

func NewBrowserFetcher(config Config, browserConfig BrowserConfig, clock chrono.TimeAPI, tel telemetry.API) (*BrowserFetcher, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)
	config = config.withDefaults()

	var lnch *launcher.Launcher
	wsURL := browserConfig.RemoteURL
	if wsURL == "" {
		lnch = launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
	}

	browser := rod.New().ControlURL(wsURL)
	err := browser.Connect()
	if err != nil {
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	return &BrowserFetcher{
		config:  config,
		browser: browser,
		lnch:    lnch,
		time:    clock,
		tel:     telemetry.NewScopedAPI("testudo_scraper", tel),
	}, nil
}

func (f *BrowserFetcher) TermID() string {
	if f.config.TermID != "" {
		return f.config.TermID
	}
	return CurrentTermID(f.time.Now())
}

func (f *BrowserFetcher) FetchCourseMarkup(ctx context.Context, courseID string) (string, error) {
	termID := f.TermID()
	ctx, span := tracer.Start(ctx, "BrowserFetchCourseMarkup")
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", courseID),
		attribute.String("term_id", termID),
	)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	markup, err := f.load(ctx, SearchURL(f.config.BaseURL, courseID, termID))
	if err != nil {
		err = fmt.Errorf("fetch '%s': %w", courseID, err)
		f.tel.ReportBroken(report_browser_fetch_course_markup, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return markup, nil
}

func (f *BrowserFetcher) load(ctx context.Context, link string) (string, error) {
	page, err := stealth.Page(f.browser)
	if err != nil {
		return "", fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	page = page.Context(navCtx)

	err = page.Navigate(link)
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	err = page.WaitLoad()
	if err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	_, err = page.Element(resultsSelector)
	if err != nil {
		return "", fmt.Errorf("wait results: %w", err)
	}
	return page.HTML()
}

func (f *BrowserFetcher) ExtractSections(markup string) ([]section.Raw, error) {
	return ExtractSections(markup)
}

func (f *BrowserFetcher) Close() error {
	err := f.browser.Close()
	if f.lnch != nil {
		f.lnch.Kill()
	}
	return err
}
