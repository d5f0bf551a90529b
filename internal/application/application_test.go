package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/config"
	"testudot/internal/mail"
	"testudot/internal/monitor"
	"testudot/internal/section"
	"testudot/internal/statestore"
	"testudot/internal/subscriptions"
	"time"

	"github.com/stretchr/testify/require"
)

type staticSource struct {
	raws []section.Raw
}

func (s staticSource) FetchCourseMarkup(ctx context.Context, courseID string) (string, error) {
	return courseID, nil
}

func (s staticSource) ExtractSections(markup string) ([]section.Raw, error) {
	return s.raws, nil
}

type fixedRandom struct {
	key string
	err error
}

func (f fixedRandom) GenerateApiKey() (string, error) {
	return f.key, f.err
}

var clock = chrono.FixedTime{At: time.Date(2026, time.March, 2, 9, 30, 0, 0, chrono.Eastern())}

func testConfig(t *testing.T, mode config.PersistenceMode) config.Config {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Persistence.Mode = mode
	cfg.Persistence.Database.File = filepath.Join(dir, "testudot.db")
	cfg.Persistence.StateDir = filepath.Join(dir, "state")
	cfg.Persistence.MappingsFile = filepath.Join(dir, "user-course-map.json")
	return cfg
}

var source = staticSource{raws: []section.Raw{
	{CourseID: "CMSC351", SectionID: "0101", Instructor: "Clyde Kruskal", TotalSeats: "30", OpenSeats: "0", WaitlistCount: "4"},
}}

func TestModes(t *testing.T) {
	cases := []struct {
		mode      config.PersistenceMode
		store     any
		directory any
	}{
		{mode: config.ModeSqlite, store: statestore.SQLStore{}, directory: subscriptions.SQLDirectory{}},
		{mode: config.ModeFile, store: &statestore.FileStore{}, directory: &subscriptions.FileDirectory{}},
	}

	for _, c := range cases {
		t.Run(string(c.mode), func(t *testing.T) {
			tel := telemetry.NewRecordingAPI()
			app, err := New(context.Background(), testConfig(t, c.mode), tel, WithSource(source), WithTime(clock))
			require.NoError(t, err)
			defer app.Close()

			require.IsType(t, c.store, app.Store)
			require.IsType(t, c.directory, app.Directory)
			require.IsType(t, mail.Disabled{}, app.Transport)
			require.Len(t, tel.Reports("warning", report_app_smtp), 1)

			ctx := context.Background()
			require.NoError(t, app.Directory.Add(ctx, "alice@umd.edu", []string{"CMSC351"}))

			results, err := app.Monitor.RunWatched(ctx)
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.Equal(t, monitor.StatusOk, results[0].Status)
			require.Equal(t, 1, results[0].EventsEmitted)
			require.True(t, errors.Is(results[0].NotifyErr, mail.ErrTransportDisabled))

			records, err := app.Store.FindByCourse(ctx, "CMSC351")
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Equal(t, "CMSC351-0101", records[0].CompositeID)
		})
	}
}

func TestSqliteStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, config.ModeSqlite)
	ctx := context.Background()

	first, err := New(ctx, cfg, telemetry.NewRecordingAPI(), WithSource(source), WithTime(clock))
	require.NoError(t, err)
	result := first.Monitor.RunCycle(ctx, "CMSC351")
	require.Equal(t, 1, result.EventsEmitted)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, telemetry.NewRecordingAPI(), WithSource(source), WithTime(clock))
	require.NoError(t, err)
	defer second.Close()
	result = second.Monitor.RunCycle(ctx, "CMSC351")
	require.True(t, result.Ok())
	require.Zero(t, result.EventsEmitted)
}

func TestDryRun(t *testing.T) {
	cfg := testConfig(t, config.ModeSqlite)
	cfg.Smtp.EmailAddress = "bot@umd.edu"
	cfg.Smtp.Password = "secret"
	tel := telemetry.NewRecordingAPI()

	app, err := New(context.Background(), cfg, tel, WithSource(source), WithTime(clock), WithDryRun())
	require.NoError(t, err)
	defer app.Close()

	require.IsType(t, &statestore.MemoryStore{}, app.Store)
	require.IsType(t, mail.Log{}, app.Transport)
}

func TestSmtpConfigured(t *testing.T) {
	cfg := testConfig(t, config.ModeFile)
	cfg.Smtp.EmailAddress = "bot@umd.edu"
	cfg.Smtp.Password = "secret"

	app, err := New(context.Background(), cfg, telemetry.NewRecordingAPI(), WithSource(source))
	require.NoError(t, err)
	defer app.Close()
	require.IsType(t, mail.SMTP{}, app.Transport)
}

func TestDefaultSourceUsesTermOverride(t *testing.T) {
	cfg := testConfig(t, config.ModeFile)
	app, err := New(context.Background(), cfg, telemetry.NewRecordingAPI(), WithTermID("202608"), WithTime(clock))
	require.NoError(t, err)
	defer app.Close()
	require.Equal(t, "202608", app.TermID())
}

func TestGenerateApiKey(t *testing.T) {
	cfg := testConfig(t, config.ModeFile)

	app, err := New(context.Background(), cfg, telemetry.NewRecordingAPI(), WithSource(source))
	require.NoError(t, err)
	key, err := app.GenerateApiKey()
	require.NoError(t, err)
	require.Len(t, key, 32)
	require.NoError(t, app.Close())

	tel := telemetry.NewRecordingAPI()
	app, err = New(context.Background(), cfg, tel, WithSource(source), WithRandomAPI(fixedRandom{err: errors.New("entropy")}))
	require.NoError(t, err)
	defer app.Close()
	_, err = app.GenerateApiKey()
	require.Error(t, err)
	require.Len(t, tel.Reports("broken", report_app_api_key), 1)
}

func TestOpenDatabaseFailure(t *testing.T) {
	cfg := testConfig(t, config.ModeSqlite)
	cfg.Persistence.Database.File = ""
	tel := telemetry.NewRecordingAPI()

	_, err := New(context.Background(), cfg, tel, WithSource(source))
	require.Error(t, err)
	require.Len(t, tel.Reports("broken", report_app_open_db), 1)
}
