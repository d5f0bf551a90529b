package testutil

import (
	"context"
	"database/sql"
	"testing"
	"testudot/internal/components/db"
	"testudot/internal/components/telemetry"
	configlibsql "testudot/lib/configutil/libsql"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB        *sql.DB
	Queries   *db.Queries
	Telemetry *telemetry.RecordingAPI
}

// SetupService opens a migrated sqlite database and a recording telemetry sink,
// both are released when the test finishes.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	t.Helper()

	dbpath := ":memory:"
	if params.DbPath != "" {
		dbpath = params.DbPath
	}
	sqldb, err := configlibsql.Struct{File: dbpath}.OpenDB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		sqldb.Close()
	})
	err = db.Migrate(context.Background(), sqldb)
	if err != nil {
		t.Fatal(err)
	}

	return ServiceResult{
		DB:        sqldb,
		Queries:   db.New(sqldb),
		Telemetry: telemetry.NewRecordingAPI(),
	}
}
