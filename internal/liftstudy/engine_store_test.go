package liftstudy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"measurement-gateway/internal/database"
	"measurement-gateway/internal/database/sqlite"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, sampleSize int) utils.LiftStudyRepository {
	t.Helper()
	ctx := context.Background()
	logger := logrus.WithField("component", "liftstudy-test")

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite, logger))

	store := repository.NewLiftStudyRepository(logger, db)
	require.NoError(t, store.CreateStudy(ctx, models.LiftStudy{
		ID:            "S1",
		Name:          "spring promo",
		StartDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SampleSize:    sampleSize,
		TemplateNames: "promo",
		Status:        models.StudyStatusActive,
	}))
	return store
}

func TestEngine_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, 2)
	engine := newTestEngine(store, 50, 10)

	assert.Equal(t, ForwardAndCount, engine.Evaluate(ctx, "A", "promo").Disposition)
	assert.Equal(t, ForwardAndCount, engine.Evaluate(ctx, "B", "promo").Disposition)
	assert.Equal(t, Drop, engine.Evaluate(ctx, "C", "promo").Disposition)
	assert.Equal(t, Drop, engine.Evaluate(ctx, "D", "promo").Disposition)

	result := engine.Evaluate(ctx, "E", "promo")
	require.NoError(t, result.Err)
	assert.Equal(t, Passthrough, result.Disposition)

	assert.Equal(t, ForwardAndCount, engine.Evaluate(ctx, "A", "promo").Disposition)

	study, err := store.GetStudy(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 2, study.ControlGroupSize)
	assert.Equal(t, 2, study.TestGroupSize)
	assert.Equal(t, 3, study.MessagesCount)

	groups, err := store.ListGroups(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, groups, 4)

	// Outside the study dates nothing is gated.
	engine.Now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, Passthrough, engine.Evaluate(ctx, "C", "promo").Disposition)
}

func TestEngine_SQLiteStore_ConcurrentPhones(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, 10)
	engine := NewEngine(logrus.WithField("component", "liftstudy-test"), store, CryptoRandom{})
	engine.Now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine.Evaluate(ctx, fmt.Sprintf("5511%08d", i), "promo")
		}(i)
	}
	wg.Wait()

	study, err := store.GetStudy(ctx, "S1")
	require.NoError(t, err)
	assert.LessOrEqual(t, study.ControlGroupSize, study.SampleSize)
	assert.LessOrEqual(t, study.TestGroupSize, study.SampleSize)

	groups, err := store.ListGroups(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, groups, study.ControlGroupSize+study.TestGroupSize)
}

func TestEngine_SQLiteStore_ConcurrentSamePhone(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, 10)
	engine := NewEngine(logrus.WithField("component", "liftstudy-test"), store, CryptoRandom{})
	engine.Now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	results := make([]Evaluation, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Evaluate(ctx, "5511999990000", "promo")
		}(i)
	}
	wg.Wait()

	groups, err := store.ListGroups(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, groups[0].GroupName, r.Group)
	}

	study, err := store.GetStudy(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, study.ControlGroupSize+study.TestGroupSize)
}
