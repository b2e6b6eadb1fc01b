package library

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/localdb"
	"github.com/zotkit/zotkit/pkg/search"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// feedFixtureSchema is the subset of the zotero.sqlite schema the feed item
// query touches.
const feedFixtureSchema = `
CREATE TABLE items (itemID INTEGER PRIMARY KEY, libraryID INTEGER, key TEXT, dateAdded TEXT);
CREATE TABLE feedItems (itemID INTEGER PRIMARY KEY, guid TEXT, readTime TEXT);
CREATE TABLE fields (fieldID INTEGER PRIMARY KEY, fieldName TEXT);
CREATE TABLE itemData (itemID INTEGER, fieldID INTEGER, valueID INTEGER);
CREATE TABLE itemDataValues (valueID INTEGER PRIMARY KEY, value TEXT);
CREATE TABLE creators (creatorID INTEGER PRIMARY KEY, firstName TEXT, lastName TEXT);
CREATE TABLE itemCreators (itemID INTEGER, creatorID INTEGER, orderIndex INTEGER);
INSERT INTO fields VALUES (1, 'title');
`

// newFeedFixture writes a zotero.sqlite holding one feed library (ID 3) with
// the given number of entries and returns its path.
func newFeedFixture(t *testing.T, itemCount int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zotero.sqlite")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(feedFixtureSchema)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 0; i < itemCount; i++ {
		key := fmt.Sprintf("FEED%04d", i)
		dateAdded := fmt.Sprintf("2026-08-01 00:%02d:%02d", (i/60)%60, i%60)
		_, err = tx.Exec(`INSERT INTO items VALUES (?, 3, ?, ?)`, i+1, key, dateAdded)
		require.NoError(t, err)
		_, err = tx.Exec(`INSERT INTO feedItems VALUES (?, ?, '')`, i+1, "guid-"+key)
		require.NoError(t, err)
		_, err = tx.Exec(`INSERT INTO itemDataValues VALUES (?, ?)`, i+1, fmt.Sprintf("Feed Entry %d", i))
		require.NoError(t, err)
		_, err = tx.Exec(`INSERT INTO itemData VALUES (?, 1, ?)`, i+1, i+1)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
	return path
}

func TestFeedClientPagination(t *testing.T) {
	path := newFeedFixture(t, 150)
	client := newFeedClient(path, "3")
	ctx := context.Background()

	first, err := client.Items(ctx, zotero.ItemQuery{Start: 0, Limit: 100})
	require.NoError(t, err)
	require.Len(t, first, 100)

	second, err := client.Items(ctx, zotero.ItemQuery{Start: 100, Limit: 100})
	require.NoError(t, err)
	require.Len(t, second, 50)

	seen := map[string]bool{}
	for _, it := range append(first, second...) {
		require.False(t, seen[it.Key], "key %s returned on more than one page", it.Key)
		seen[it.Key] = true
	}
	require.Len(t, seen, 150)

	t.Run("paginated scan terminates and covers every entry", func(t *testing.T) {
		conds := []search.Condition{{Field: "title", Operation: "contains", Value: "feed entry"}}
		results, err := search.Run(ctx, client, conds, search.Options{Limit: 200})
		require.NoError(t, err)
		require.Len(t, results, 150)
	})

	t.Run("item lookup reaches entries beyond the first page", func(t *testing.T) {
		item, err := client.Item(ctx, "FEED0005")
		require.NoError(t, err)
		require.Equal(t, "Feed Entry 5", item.Data.Str("title"))
	})
}

func TestFeedClientScopesReaderPerCall(t *testing.T) {
	path := newFeedFixture(t, 3)

	var handles []*sql.DB
	client := &feedClient{
		libraryID: 3,
		open: func() (*localdb.Reader, error) {
			db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
			if err != nil {
				return nil, err
			}
			handles = append(handles, db)
			return localdb.OpenDB(db), nil
		},
	}

	_, err := client.Items(context.Background(), zotero.ItemQuery{Limit: 10})
	require.NoError(t, err)
	_, err = client.Item(context.Background(), "FEED0001")
	require.NoError(t, err)

	require.Len(t, handles, 2)
	for _, db := range handles {
		require.Error(t, db.Ping(), "reader handle must be released when the call returns")
	}
}
