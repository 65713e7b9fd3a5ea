package learnings

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgConnStr      string
	pgContainerErr error
	pgOnce         sync.Once
)

// postgresURL starts one shared container for the package. Tests are skipped
// in -short mode so unit runs stay docker-free.
func postgresURL(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	pgOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			pgContainerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		pgConnStr, pgContainerErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, pgContainerErr)
	return pgConnStr
}

func newPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, postgresURL(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, ns := range []string{"/platform/globals", "/org/acme/globals", "/org/acme/providers/luma",
			"/org/acme/actor/u1/providers/luma"} {
			_ = s.DeleteNamespace(ctx, ns)
		}
		_ = s.Close()
	})
	return s
}

func TestPostgresCRUD(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()

	rec := &Record{
		Namespace:     "/org/acme/globals",
		Content:       map[string]any{"guidance": "short prompts"},
		TextForSearch: "short prompts work better",
		Confidence:    0.5,
		Tags:          []string{"prompting"},
	}
	id, err := s.Create(ctx, rec)
	require.NoError(t, err)

	got, err := s.Get(ctx, "/org/acme/globals", id)
	require.NoError(t, err)
	assert.Equal(t, "short prompts work better", got.TextForSearch)
	assert.Equal(t, []string{"prompting"}, got.Tags)
	assert.Equal(t, "short prompts", got.Content["guidance"])

	got.Validations = 3
	got.Confidence = 0.8
	require.NoError(t, s.Update(ctx, got))
	got2, err := s.Get(ctx, "/org/acme/globals", id)
	require.NoError(t, err)
	assert.Equal(t, 3, got2.Validations)

	require.NoError(t, s.Delete(ctx, "/org/acme/globals", id))
	_, err = s.Get(ctx, "/org/acme/globals", id)
	require.Error(t, err)
}

func TestPostgresListAndTagFilter(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()

	for i, tags := range [][]string{{"a"}, {"a", "b"}, {"b"}} {
		_, err := s.Create(ctx, &Record{
			Namespace:     "/org/acme/globals",
			Content:       map[string]any{"i": i},
			TextForSearch: "entry",
			Tags:          tags,
		})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "/org/acme/globals", 0, 0, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tagged, err := s.List(ctx, "/org/acme/globals", 0, 0, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
}

func TestPostgresFullTextSearch(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()

	_, err := s.Create(ctx, &Record{
		Namespace:     "/org/acme/providers/luma",
		TextForSearch: "luma handles camera motion poorly with fast pans",
		Confidence:    0.9,
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, &Record{
		Namespace:     "/org/acme/providers/luma",
		TextForSearch: "audio ducking level for voiceover",
		Confidence:    0.9,
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, []string{"/org/acme/providers/luma"}, "camera motion", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Record.TextForSearch, "camera motion")
}

func TestPostgresPromotionLadder(t *testing.T) {
	s := newPostgres(t)
	p := NewPromoter(s, DefaultPromotionRules())
	ctx := context.Background()
	const userNS = "/org/acme/actor/u1/providers/luma"

	id, err := s.Create(ctx, &Record{Namespace: userNS, TextForSearch: "avoid fast pans", Confidence: 0.5})
	require.NoError(t, err)

	var res *ValidationResult
	for i := 0; i < 3; i++ {
		res, err = p.Validate(ctx, userNS, id, true)
		require.NoError(t, err)
	}
	require.True(t, res.Promoted)

	promoted, err := s.Get(ctx, "/org/acme/providers/luma", res.PromotedID)
	require.NoError(t, err)
	assert.Equal(t, id, promoted.PromotedFrom)
	require.Len(t, promoted.PromotionHistory, 1)
	assert.Equal(t, userNS, promoted.PromotionHistory[0].FromNamespace)
}
