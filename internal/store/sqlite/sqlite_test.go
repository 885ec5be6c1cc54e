package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertArticleByURLIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 4, 5, 6, 7, 123456789, time.UTC)
	first := models.NewsArticle{ID: "a-1", Title: "Old title", URL: "https://example.com/x", Source: "Reuters", Date: date, CreatedAt: time.Now()}

	stored, created, err := st.UpsertArticleByURL(ctx, first)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "a-1", stored.ID)

	found, err := st.FindArticleByURL(ctx, first.URL)
	require.NoError(t, err)
	require.Equal(t, found, stored, "insert returns the stored copy")

	again, created, err := st.UpsertArticleByURL(ctx, models.NewsArticle{ID: "a-2", Title: "New title", URL: "https://example.com/x"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "a-1", again.ID)
	require.Equal(t, "Old title", again.Title)
	require.Equal(t, stored, again)
	require.True(t, date.Truncate(time.Second).Equal(again.Date))

	_, err = st.FindArticleByURL(ctx, "https://example.com/none")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPreferencesCreatesThenMerges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetPreferences(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	country := "us"
	categories := []string{"technology"}
	size := 20
	created, err := st.SetPreferences(ctx, "u1", models.PreferencesPatch{
		PreferredNewsCountry:    &country,
		PreferredNewsCategories: &categories,
		PreferredNewsPageSize:   &size,
	})
	require.NoError(t, err)
	require.Equal(t, "us", created.PreferredNewsCountry)
	require.Equal(t, []string{}, created.PreferredNewsKeywords)

	keywords := []string{"ai", "chips"}
	merged, err := st.SetPreferences(ctx, "u1", models.PreferencesPatch{PreferredNewsKeywords: &keywords})
	require.NoError(t, err)
	require.Equal(t, "us", merged.PreferredNewsCountry)
	require.Equal(t, []string{"technology"}, merged.PreferredNewsCategories)
	require.Equal(t, 20, merged.PreferredNewsPageSize)
	require.Equal(t, []string{"ai", "chips"}, merged.PreferredNewsKeywords)

	got, err := st.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, merged.PreferredNewsKeywords, got.PreferredNewsKeywords)
	require.True(t, merged.UpdatedAt.Equal(got.UpdatedAt))
}

func TestLedgerKeepsRepeatedMarks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	var marked []models.ReadNewsArticle
	for i := 0; i < 2; i++ {
		rec, err := st.MarkRead(ctx, models.ReadNewsArticle{ID: fmt.Sprintf("r%d", i), UserID: "u1", NewsArticleID: "a1", CreatedAt: now})
		require.NoError(t, err)
		marked = append(marked, rec)
		_, err = st.MarkFavorite(ctx, models.FavoriteNewsArticle{ID: fmt.Sprintf("f%d", i), UserID: "u1", NewsArticleID: "a1", CreatedAt: now})
		require.NoError(t, err)
	}

	reads, err := st.ListRead(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, reads, 2)
	require.Equal(t, "r0", reads[0].ID)
	require.Equal(t, marked, reads, "returned marks match what is listed")

	favs, err := st.ListFavorite(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favs, 2)

	none, err := st.ListRead(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestSchemaMigrationsAreRecorded(t *testing.T) {
	st := newTestStore(t)

	var version int
	require.NoError(t, st.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	require.Equal(t, len(migrations), version)
	require.NoError(t, applySchema(st.db))
}
