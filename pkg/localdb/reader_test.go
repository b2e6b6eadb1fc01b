package localdb

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// fixtureSchema is the subset of the zotero.sqlite schema the reader touches.
const fixtureSchema = `
CREATE TABLE libraries (libraryID INTEGER PRIMARY KEY, type TEXT NOT NULL);
CREATE TABLE groups (groupID INTEGER PRIMARY KEY, libraryID INTEGER, name TEXT, description TEXT);
CREATE TABLE feeds (libraryID INTEGER PRIMARY KEY, name TEXT, url TEXT, lastCheck TEXT, lastCheckError TEXT);
CREATE TABLE items (itemID INTEGER PRIMARY KEY, libraryID INTEGER, key TEXT, dateAdded TEXT);
CREATE TABLE deletedItems (itemID INTEGER PRIMARY KEY);
CREATE TABLE fields (fieldID INTEGER PRIMARY KEY, fieldName TEXT);
CREATE TABLE itemData (itemID INTEGER, fieldID INTEGER, valueID INTEGER);
CREATE TABLE itemDataValues (valueID INTEGER PRIMARY KEY, value TEXT);
CREATE TABLE creators (creatorID INTEGER PRIMARY KEY, firstName TEXT, lastName TEXT);
CREATE TABLE itemCreators (itemID INTEGER, creatorID INTEGER, orderIndex INTEGER);
CREATE TABLE feedItems (itemID INTEGER PRIMARY KEY, guid TEXT, readTime TEXT);
`

func newFixture(t *testing.T) *Reader {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fixtureSchema)
	require.NoError(t, err)

	seed := `
	INSERT INTO libraries VALUES (1, 'user'), (2, 'group'), (3, 'feed');
	INSERT INTO groups VALUES (501, 2, 'Lab Group', 'shared reading');
	INSERT INTO feeds VALUES (3, 'arXiv cs.CL', 'https://arxiv.org/rss/cs.CL', '2026-08-01 10:00:00', '');

	INSERT INTO items VALUES (10, 1, 'AAAA1111', '2026-07-01 09:00:00');
	INSERT INTO items VALUES (11, 1, 'BBBB2222', '2026-07-02 09:00:00');
	INSERT INTO items VALUES (12, 2, 'CCCC3333', '2026-07-03 09:00:00');
	INSERT INTO items VALUES (20, 3, 'FEED0001', '2026-08-01 09:00:00');
	INSERT INTO items VALUES (21, 3, 'FEED0002', '2026-08-02 09:00:00');
	INSERT INTO deletedItems VALUES (11);

	INSERT INTO fields VALUES (1, 'title'), (2, 'url'), (3, 'abstractNote');
	INSERT INTO itemDataValues VALUES (100, 'Attention Is All You Need'), (101, 'https://example.org/paper'), (102, 'We propose the Transformer.');
	INSERT INTO itemData VALUES (20, 1, 100), (20, 2, 101), (20, 3, 102);
	INSERT INTO itemDataValues VALUES (103, 'Scaling Laws Revisited');
	INSERT INTO itemData VALUES (21, 1, 103);

	INSERT INTO creators VALUES (1, 'Ashish', 'Vaswani'), (2, 'Noam', 'Shazeer');
	INSERT INTO itemCreators VALUES (20, 1, 0), (20, 2, 1);

	INSERT INTO feedItems VALUES (20, 'guid-1', ''), (21, 'guid-2', '2026-08-03 12:00:00');
	`
	_, err = db.Exec(seed)
	require.NoError(t, err)
	return OpenDB(db)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/zotero.sqlite")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestLibraries(t *testing.T) {
	r := newFixture(t)
	libs, err := r.Libraries(context.Background())
	require.NoError(t, err)
	require.Len(t, libs, 3)

	byID := map[int64]Library{}
	for _, l := range libs {
		byID[l.LibraryID] = l
	}

	t.Run("user library excludes trashed items from count", func(t *testing.T) {
		require.Equal(t, "user", byID[1].Type)
		require.Equal(t, 1, byID[1].ItemCount)
	})
	t.Run("group library carries group metadata", func(t *testing.T) {
		require.Equal(t, "group", byID[2].Type)
		require.Equal(t, int64(501), byID[2].GroupID)
		require.Equal(t, "Lab Group", byID[2].Name)
	})
	t.Run("feed library named after the feed", func(t *testing.T) {
		require.Equal(t, "feed", byID[3].Type)
		require.Equal(t, "arXiv cs.CL", byID[3].Name)
		require.Equal(t, 2, byID[3].ItemCount)
	})
}

func TestFeeds(t *testing.T) {
	r := newFixture(t)
	feeds, err := r.Feeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, "arXiv cs.CL", feeds[0].Name)
	require.Equal(t, "https://arxiv.org/rss/cs.CL", feeds[0].URL)
	require.Equal(t, 2, feeds[0].ItemCount)
}

func TestFeedItems(t *testing.T) {
	r := newFixture(t)

	items, err := r.FeedItems(context.Background(), 3, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest first.
	require.Equal(t, "FEED0002", items[0].Key)
	require.Equal(t, "Scaling Laws Revisited", items[0].Title)
	require.NotEmpty(t, items[0].ReadTime)

	require.Equal(t, "FEED0001", items[1].Key)
	require.Equal(t, "Attention Is All You Need", items[1].Title)
	require.Equal(t, "https://example.org/paper", items[1].URL)
	require.Equal(t, "Ashish Vaswani, Noam Shazeer", items[1].Creators)
	require.Empty(t, items[1].ReadTime)

	t.Run("limit caps the page", func(t *testing.T) {
		one, err := r.FeedItems(context.Background(), 3, 1, 0)
		require.NoError(t, err)
		require.Len(t, one, 1)
		require.Equal(t, "FEED0002", one[0].Key)
	})
	t.Run("offset continues where the previous page ended", func(t *testing.T) {
		rest, err := r.FeedItems(context.Background(), 3, 10, 1)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		require.Equal(t, "FEED0001", rest[0].Key)
	})
	t.Run("offset past the end yields empty", func(t *testing.T) {
		none, err := r.FeedItems(context.Background(), 3, 10, 5)
		require.NoError(t, err)
		require.Empty(t, none)
	})
	t.Run("unknown library yields empty", func(t *testing.T) {
		none, err := r.FeedItems(context.Background(), 99, 10, 0)
		require.NoError(t, err)
		require.Empty(t, none)
	})
}
