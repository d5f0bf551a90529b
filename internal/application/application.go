// Package application wires configuration into the components a command runs.
package application

import (
	"context"
	"errors"
	"fmt"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/db"
	"testudot/internal/components/telemetry"
	"testudot/internal/config"
	"testudot/internal/mail"
	"testudot/internal/monitor"
	"testudot/internal/notify"
	"testudot/internal/scrapers/testudo"
	"testudot/internal/statestore"
	"testudot/internal/subscriptions"

	"github.com/mazen160/go-random"
)

const (
	report_app_open_db    = "app.open-db"
	report_app_smtp       = "app.smtp"
	report_app_api_key    = "app.api-key"
	report_app_close      = "app.close"
	report_app_browser    = "app.browser"
	report_app_file_store = "app.file-store"
)

// RandomAPI is an abstraction over any code that generates random values.
//
// note: fault injection point
type RandomAPI interface {
	GenerateApiKey() (string, error)
}

type defaultRandomAPI struct{}

func NewRandomAPI() RandomAPI {
	return defaultRandomAPI{}
}

func (defaultRandomAPI) GenerateApiKey() (string, error) {
	return random.String(32)
}

type appConfig struct {
	dryRun bool
	termID string
	source monitor.Source
	time   chrono.TimeAPI
	rand   RandomAPI
}

type Option func(cfg *appConfig)

// WithDryRun keeps state in memory and only logs notifications.
func WithDryRun() Option {
	return func(cfg *appConfig) {
		cfg.dryRun = true
	}
}

// WithTermID overrides the configured term, empty keeps it.
func WithTermID(termID string) Option {
	return func(cfg *appConfig) {
		cfg.termID = termID
	}
}

func WithSource(source monitor.Source) Option {
	return func(cfg *appConfig) {
		cfg.source = source
	}
}

func WithTime(time chrono.TimeAPI) Option {
	return func(cfg *appConfig) {
		cfg.time = time
	}
}

func WithRandomAPI(rand RandomAPI) Option {
	return func(cfg *appConfig) {
		cfg.rand = rand
	}
}

type App struct {
	Config    config.Config
	Time      chrono.TimeAPI
	Rand      RandomAPI
	Store     statestore.Store
	Directory subscriptions.Directory
	Transport mail.Transport
	Router    notify.Router
	Source    monitor.Source
	Monitor   *monitor.Monitor

	raw     telemetry.API
	tel     telemetry.API
	closers []func() error
}

// New builds every component the configuration asks for. The returned App
// must be closed.
func New(ctx context.Context, cfg config.Config, tel telemetry.API, options ...Option) (*App, error) {
	assert.NotNil(tel)

	opts := appConfig{
		time: chrono.NewStandardTime(),
		rand: NewRandomAPI(),
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.termID != "" {
		cfg.Testudo.TermID = opts.termID
	}

	app := &App{
		Config: cfg,
		Time:   opts.time,
		Rand:   opts.rand,
		raw:    tel,
		tel:    telemetry.NewScopedAPI("application", tel),
	}
	err := app.openPersistence(ctx, opts.dryRun)
	if err != nil {
		app.Close()
		return nil, err
	}

	switch {
	case opts.dryRun:
		app.Transport = mail.NewLog(tel)
	case cfg.Smtp.Configured():
		app.Transport = mail.NewSMTP(cfg.Smtp, tel)
	default:
		app.tel.ReportWarning(report_app_smtp, "EMAIL_USER or EMAIL_PASS not set, notifications will not be sent")
		app.Transport = mail.NewDisabled(tel)
	}
	app.Router = notify.NewRouter(app.Directory, app.Transport, tel)

	app.Source = opts.source
	if app.Source == nil {
		app.Source, err = app.openSource(tel)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Monitor = monitor.NewMonitor(
		app.Source,
		app.Store,
		app.Router,
		app.Directory,
		app.Time,
		tel,
		cfg.Monitor.Options(),
	)
	return app, nil
}

func (a *App) openPersistence(ctx context.Context, dryRun bool) error {
	persistence := a.Config.Persistence
	tel := a.raw

	if persistence.Mode == config.ModeFile {
		a.Directory = subscriptions.NewFileDirectory(persistence.MappingsFile, tel)
		if dryRun {
			a.Store = statestore.NewMemoryStore(a.Time)
			return nil
		}
		store, err := statestore.NewFileStore(persistence.StateDir, a.Time, tel)
		if err != nil {
			a.tel.ReportBroken(report_app_file_store, err, persistence.StateDir)
			return err
		}
		a.Store = store
		return nil
	}

	sqldb, err := persistence.DatabaseConfig().OpenDB()
	if err != nil {
		a.tel.ReportBroken(report_app_open_db, err)
		return fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, sqldb.Close)
	err = db.Migrate(ctx, sqldb)
	if err != nil {
		a.tel.ReportBroken(report_app_open_db, err)
		return fmt.Errorf("migrate database: %w", err)
	}

	qry := db.New(sqldb)
	a.Directory = subscriptions.NewSQLDirectory(qry, db.NewMakeTx(sqldb), tel)
	if dryRun {
		a.Store = statestore.NewMemoryStore(a.Time)
		return nil
	}
	a.Store = statestore.NewSQLStore(qry, a.Time, tel)
	return nil
}

func (a *App) openSource(tel telemetry.API) (monitor.Source, error) {
	if a.Config.Monitor.UseBrowser {
		fetcher, err := testudo.NewBrowserFetcher(a.Config.Testudo, a.Config.Monitor.Browser, a.Time, tel)
		if err != nil {
			a.tel.ReportBroken(report_app_browser, err)
			return nil, err
		}
		a.closers = append(a.closers, fetcher.Close)
		return fetcher, nil
	}
	return testudo.NewClient(a.Config.Testudo, a.Time, tel)
}

// TermID is the term the monitor fetches.
func (a *App) TermID() string {
	return a.Monitor.TermID()
}

// GenerateApiKey creates a new random api key for the http server.
func (a *App) GenerateApiKey() (string, error) {
	key, err := a.Rand.GenerateApiKey()
	if err != nil {
		a.tel.ReportBroken(report_app_api_key, err)
		return "", err
	}
	return key, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i]()
		if err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	err := errors.Join(errs...)
	if err != nil {
		a.tel.ReportWarning(report_app_close, err)
	}
	return err
}
