package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"measurement-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewKeywordRepository(testLogger(), db)

	id, err := repo.CreateKeyword(ctx, "buy now", "purchase_intent")
	require.NoError(t, err)
	require.NotZero(t, id)

	keyword, err := repo.GetKeyword(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "buy now", keyword.Keyword)
	assert.Equal(t, "purchase_intent", keyword.Signal)
	assert.False(t, keyword.CreatedAt.IsZero())

	require.NoError(t, repo.UpdateKeyword(ctx, id, "buy", "purchase"))
	keyword, err = repo.GetKeyword(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "buy", keyword.Keyword)
	assert.Equal(t, "purchase", keyword.Signal)

	_, err = repo.CreateKeyword(ctx, "buy", "other")
	require.Error(t, err, "keywords are unique")

	keywords, err := repo.ListKeywords(ctx)
	require.NoError(t, err)
	assert.Len(t, keywords, 1)

	signals := NewSignalRepository(testLogger(), db)
	require.NoError(t, signals.SaveSignals(ctx, []models.Signal{
		{KeywordID: id, BusinessPhoneNumberID: "1001", ConsumerPhoneNumber: "5511"},
	}))

	require.NoError(t, repo.DeleteKeyword(ctx, id))
	_, err = repo.GetKeyword(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.DeleteKeyword(ctx, id), ErrNotFound)

	counts, err := signals.CountSignals(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSignalRepository_CountSignals(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	keywords := NewKeywordRepository(testLogger(), db)
	repo := NewSignalRepository(testLogger(), db)

	buy, err := keywords.CreateKeyword(ctx, "buy", "purchase")
	require.NoError(t, err)
	price, err := keywords.CreateKeyword(ctx, "price", "interest")
	require.NoError(t, err)

	require.NoError(t, repo.SaveSignals(ctx, nil))
	require.NoError(t, repo.SaveSignals(ctx, []models.Signal{
		{KeywordID: buy, BusinessPhoneNumberID: "1001", ConsumerPhoneNumber: "5511"},
		{KeywordID: buy, BusinessPhoneNumberID: "1001", ConsumerPhoneNumber: "5512"},
		{KeywordID: price, BusinessPhoneNumberID: "1001", ConsumerPhoneNumber: "5511"},
		{KeywordID: price, BusinessPhoneNumberID: "2002", ConsumerPhoneNumber: "5513"},
	}))

	expected := []models.SignalCount{
		{BusinessNumberID: "1001", Signal: "interest", Count: 1},
		{BusinessNumberID: "1001", Signal: "purchase", Count: 2},
		{BusinessNumberID: "2002", Signal: "interest", Count: 1},
	}

	counts, err := repo.CountSignals(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, counts)

	now := time.Now()
	from, to := now.Add(-time.Hour), now.Add(time.Hour)
	counts, err = repo.CountSignals(ctx, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, expected, counts)

	from, to = now.AddDate(0, -2, 0), now.AddDate(0, -1, 0)
	counts, err = repo.CountSignals(ctx, &from, &to)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAudienceRuleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAudienceRuleRepository(testLogger(), newTestDB(t))

	include := json.RawMessage(`[{"event_name":"purchase"}]`)
	rule, err := repo.CreateAudienceRule(ctx, "buyers", include, nil, "")
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)

	_, err = repo.CreateAudienceRule(ctx, "churned", nil, json.RawMessage(`[{"event_name":"login"}]`), "2384")
	require.NoError(t, err)

	rules, err := repo.ListAudienceRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "buyers", rules[0].Name)
	assert.JSONEq(t, string(include), string(rules[0].Include))
	assert.Empty(t, rules[0].Exclude)
	assert.Equal(t, "2384", rules[1].SubscriberListID)

	deleted, err := repo.DeleteAudienceRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	rules, err = repo.ListAudienceRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
