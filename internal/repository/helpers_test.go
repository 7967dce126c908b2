package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"measurement-gateway/internal/database"
	"measurement-gateway/internal/database/sqlite"
	"measurement-gateway/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	return logrus.WithField("component", "repository-test")
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite, testLogger()))
	return db
}

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, value)
	require.NoError(t, err)
	return d
}

func newStudy(t *testing.T, id string, sampleSize int) models.LiftStudy {
	return models.LiftStudy{
		ID:            id,
		Name:          "study " + id,
		StartDate:     date(t, "2024-03-01"),
		EndDate:       date(t, "2024-03-31"),
		SampleSize:    sampleSize,
		TemplateNames: "promo,welcome_back",
		Status:        models.StudyStatusActive,
	}
}
