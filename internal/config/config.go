// Package config loads testudot's configuration from json5 files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testudot/internal/components/telemetry"
	"testudot/internal/mail"
	"testudot/internal/monitor"
	"testudot/internal/scrapers/testudo"
	"testudot/lib/configutil"
	configlibsql "testudot/lib/configutil/libsql"
	"time"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
)

const DefaultPath = "testudot.json5"

type PersistenceMode string

const (
	// ModeSqlite keeps state and subscriptions in a local sqlite file.
	ModeSqlite PersistenceMode = "sqlite"
	// ModeLibsql keeps state and subscriptions in a remote libsql database.
	ModeLibsql PersistenceMode = "libsql"
	// ModeFile keeps one json file per course and a json subscription map.
	ModeFile PersistenceMode = "file"
)

func (m PersistenceMode) Valid() bool {
	switch m {
	case ModeSqlite, ModeLibsql, ModeFile:
		return true
	}
	return false
}

type Persistence struct {
	Mode     PersistenceMode     `json:"mode"`
	Database configlibsql.Struct `json:"database"`
	// StateDir holds sections-<COURSE>.json in file mode.
	StateDir string `json:"state_dir"`
	// MappingsFile is the subscription map in file mode.
	MappingsFile string `json:"mappings_file"`
}

// DatabaseConfig is the database to open, a sqlite mode never goes remote
// even when a url is configured.
func (p Persistence) DatabaseConfig() configlibsql.Struct {
	out := p.Database
	if p.Mode != ModeLibsql {
		out.URL = ""
		out.AuthToken = ""
	}
	return out
}

type Monitor struct {
	IntervalMinutes     int                       `json:"interval_minutes"`
	EmptyScrapePolicy   monitor.EmptyScrapePolicy `json:"empty_scrape_policy"`
	CycleTimeoutSeconds int                       `json:"cycle_timeout_seconds"`
	// UseBrowser fetches pages with headless chrome instead of plain HTTP.
	UseBrowser bool                  `json:"use_browser"`
	Browser    testudo.BrowserConfig `json:"browser"`
}

func (m Monitor) Options() monitor.Options {
	return monitor.Options{
		EmptyScrapePolicy: m.EmptyScrapePolicy,
		CycleTimeout:      time.Duration(m.CycleTimeoutSeconds) * time.Second,
	}
}

type Server struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	ApiKey string `json:"api_key"`
}

type Config struct {
	Persistence Persistence      `json:"persistence"`
	Testudo     testudo.Config   `json:"testudo"`
	Monitor     Monitor          `json:"monitor"`
	Smtp        mail.SmtpConfig  `json:"smtp"`
	Server      Server           `json:"server"`
	Telemetry   telemetry.Config `json:"telemetry"`
}

// Env is the environment the config can be overridden with.
type Env struct {
	EmailUser         string `envconfig:"EMAIL_USER"`
	EmailPass         string `envconfig:"EMAIL_PASS"`
	PersistenceMode   string `envconfig:"PERSISTENCE_MODE"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	DatabaseAuthToken string `envconfig:"DATABASE_AUTH_TOKEN"`
	ApiKey            string `envconfig:"API_KEY"`
	TermID            string `envconfig:"TESTUDO_TERM_ID"`
	// IsServer forces the remote database, a server has no durable local disk.
	IsServer bool `envconfig:"IS_SERVER"`
	Debug    bool `envconfig:"DEBUG"`
}

func Defaults() Config {
	return Config{
		Persistence: Persistence{
			Mode:         ModeSqlite,
			Database:     configlibsql.Struct{File: "testudot.db"},
			StateDir:     "state",
			MappingsFile: "user-course-map.json",
		},
		Testudo: testudo.Config{
			BaseURL:           testudo.DefaultBaseURL,
			UserAgent:         testudo.DefaultUserAgent,
			RequestsPerSecond: 2,
		},
		Monitor: Monitor{
			IntervalMinutes:     15,
			EmptyScrapePolicy:   monitor.EmptyScrapeRemove,
			CycleTimeoutSeconds: 120,
		},
		Smtp: mail.SmtpConfig{
			Server: "smtp.gmail.com",
			Port:   587,
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
	}
}

// Load merges, in increasing priority, the defaults, the config file and its
// .local override, then the environment. A missing config file is not an error.
func Load(path string) (Config, error) {
	env := Env{}
	err := envconfig.Process("", &env)
	if err != nil {
		return Config{}, err
	}
	return LoadWithEnv(path, env)
}

func LoadWithEnv(path string, env Env) (Config, error) {
	out := Defaults()

	fromFile, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config '%s': %w", path, err)
	}
	if err == nil {
		err = mergo.Merge(&out, fromFile, mergo.WithOverride)
		if err != nil {
			return Config{}, err
		}
	}

	out.applyEnv(env)
	out.resolvePaths(filepath.Dir(path))
	return out, out.Validate()
}

func (c *Config) applyEnv(env Env) {
	if env.EmailUser != "" {
		c.Smtp.EmailAddress = env.EmailUser
	}
	if env.EmailPass != "" {
		c.Smtp.Password = env.EmailPass
	}
	if env.PersistenceMode != "" {
		c.Persistence.Mode = PersistenceMode(env.PersistenceMode)
	}
	if env.DatabaseURL != "" {
		c.Persistence.Database.URL = env.DatabaseURL
	}
	if env.DatabaseAuthToken != "" {
		c.Persistence.Database.AuthToken = env.DatabaseAuthToken
	}
	if env.ApiKey != "" {
		c.Server.ApiKey = env.ApiKey
	}
	if env.TermID != "" {
		c.Testudo.TermID = env.TermID
	}
	if env.Debug {
		c.Telemetry.Debug = true
	}
	if env.IsServer {
		c.Persistence.Mode = ModeLibsql
	}
}

// relative paths are relative to the config file, not the working directory.
func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Persistence.Database.File = resolve(c.Persistence.Database.File)
	c.Persistence.StateDir = resolve(c.Persistence.StateDir)
	c.Persistence.MappingsFile = resolve(c.Persistence.MappingsFile)
}

func (c Config) Validate() error {
	var errs []error
	if !c.Persistence.Mode.Valid() {
		errs = append(errs, fmt.Errorf("unknown persistence mode '%s'", c.Persistence.Mode))
	}
	if c.Persistence.Mode == ModeLibsql && c.Persistence.Database.URL == "" {
		errs = append(errs, fmt.Errorf("persistence mode 'libsql' requires a database url (DATABASE_URL)"))
	}
	switch c.Monitor.EmptyScrapePolicy {
	case monitor.EmptyScrapeRemove, monitor.EmptyScrapeFail:
	default:
		errs = append(errs, fmt.Errorf("unknown empty scrape policy '%s'", c.Monitor.EmptyScrapePolicy))
	}
	if c.Monitor.IntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("monitor interval must be positive"))
	}
	return errors.Join(errs...)
}

// LocalPath is the .local override file of a config path, settings changed
// from the cli are written there.
func LocalPath(path string) string {
	return configutil.LocalName(path)
}

// Discover finds the nearest DefaultPath from the working directory upwards,
// DefaultPath itself is returned when there is none.
func Discover() string {
	path, err := configutil.FindUpwards(".", DefaultPath)
	if err != nil {
		return DefaultPath
	}
	return path
}
