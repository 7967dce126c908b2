package signals

import (
	"context"
	"testing"
	"time"

	"measurement-gateway/internal/database"
	"measurement-gateway/internal/database/sqlite"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	keywords := []models.Keyword{
		{ID: 1, Keyword: "buy"},
		{ID: 2, Keyword: "Price"},
		{ID: 3, Keyword: ""},
	}

	matched := Match(keywords, "I want to buy it, what is the price?")
	require.Len(t, matched, 1)
	assert.Equal(t, int64(1), matched[0].ID)

	assert.Empty(t, Match(keywords, "hello"))
	assert.Len(t, Match(keywords, "Price to buy"), 2)
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	logger := logrus.WithField("component", "signals-test")

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite, logger))

	keywords := repository.NewKeywordRepository(logger, db)
	signalRepo := repository.NewSignalRepository(logger, db)
	_, err = keywords.CreateKeyword(ctx, "buy", "purchase")
	require.NoError(t, err)
	_, err = keywords.CreateKeyword(ctx, "price", "interest")
	require.NoError(t, err)

	recorder := NewRecorder(logger, keywords, signalRepo)

	n, err := recorder.Record(ctx, Message{BusinessNumberID: "1001", ConsumerNumber: "5511", Text: "what is the price to buy?"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = recorder.Record(ctx, Message{BusinessNumberID: "1001", ConsumerNumber: "5511", Text: "thanks"})
	require.NoError(t, err)
	assert.Zero(t, n)

	from, to := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	counts, err := signalRepo.CountSignals(ctx, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, []models.SignalCount{
		{BusinessNumberID: "1001", Signal: "interest", Count: 1},
		{BusinessNumberID: "1001", Signal: "purchase", Count: 1},
	}, counts)
}
