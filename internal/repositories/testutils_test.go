package repositories_test

import (
	"testing"

	"github.com/jlaasanen/dealflow/internal/db"

	_ "embed"
)

//go:embed testdata/fixtures.sql
var testFixtures string

// newTestDB creates a new in-memory database seeded with the test fixtures.
func newTestDB(t *testing.T) *db.Database {
	t.Helper()

	dbs, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = dbs.ReadWrite.Exec(testFixtures); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := dbs.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return dbs
}
