// Package localdb reads a Zotero desktop installation's zotero.sqlite
// directly. Access is strictly read-only: the database is opened immutable
// so a running Zotero is never blocked or corrupted. Callers must Close the
// reader when done.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	listLibrariesStatement = `
	SELECT l.libraryID, l.type,
	       COALESCE(g.groupID, 0), COALESCE(g.name, ''), COALESCE(g.description, ''),
	       COALESCE(f.name, ''),
	       (SELECT COUNT(*) FROM items i
	        WHERE i.libraryID = l.libraryID
	          AND i.itemID NOT IN (SELECT itemID FROM deletedItems))
	FROM libraries l
	LEFT JOIN groups g ON g.libraryID = l.libraryID
	LEFT JOIN feeds f ON f.libraryID = l.libraryID
	ORDER BY l.libraryID
	`

	listFeedsStatement = `
	SELECT f.libraryID, f.name, f.url,
	       COALESCE(f.lastCheck, ''), COALESCE(f.lastCheckError, ''),
	       (SELECT COUNT(*) FROM items i WHERE i.libraryID = f.libraryID)
	FROM feeds f
	ORDER BY f.name
	`

	listFeedItemsStatement = `
	SELECT i.key,
	       COALESCE((SELECT idv.value FROM itemData id
	                 JOIN itemDataValues idv ON idv.valueID = id.valueID
	                 JOIN fields fl ON fl.fieldID = id.fieldID
	                 WHERE id.itemID = i.itemID AND fl.fieldName = 'title'), ''),
	       COALESCE((SELECT idv.value FROM itemData id
	                 JOIN itemDataValues idv ON idv.valueID = id.valueID
	                 JOIN fields fl ON fl.fieldID = id.fieldID
	                 WHERE id.itemID = i.itemID AND fl.fieldName = 'url'), ''),
	       COALESCE((SELECT idv.value FROM itemData id
	                 JOIN itemDataValues idv ON idv.valueID = id.valueID
	                 JOIN fields fl ON fl.fieldID = id.fieldID
	                 WHERE id.itemID = i.itemID AND fl.fieldName = 'abstractNote'), ''),
	       COALESCE((SELECT GROUP_CONCAT(TRIM(c.firstName || ' ' || c.lastName), ', ')
	                 FROM itemCreators ic
	                 JOIN creators c ON c.creatorID = ic.creatorID
	                 WHERE ic.itemID = i.itemID), ''),
	       i.dateAdded,
	       COALESCE(fi.readTime, '')
	FROM items i
	JOIN feedItems fi ON fi.itemID = i.itemID
	WHERE i.libraryID = ?
	ORDER BY i.dateAdded DESC, i.itemID DESC
	LIMIT ? OFFSET ?
	`
)

// Library describes one row of the libraries table, joined with group and
// feed names where applicable.
type Library struct {
	LibraryID   int64  `json:"libraryID"`
	Type        string `json:"type"` // user, group, feed
	GroupID     int64  `json:"groupID,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	ItemCount   int    `json:"itemCount"`
}

// Feed describes one RSS feed subscription.
type Feed struct {
	LibraryID      int64  `json:"libraryID"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	LastCheck      string `json:"lastCheck,omitempty"`
	LastCheckError string `json:"lastCheckError,omitempty"`
	ItemCount      int    `json:"itemCount"`
}

// FeedItem is a single entry of a feed library.
type FeedItem struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Abstract  string `json:"abstract,omitempty"`
	Creators  string `json:"creators,omitempty"`
	DateAdded string `json:"dateAdded"`
	ReadTime  string `json:"readTime,omitempty"`
}

// Reader holds an open read-only handle on zotero.sqlite.
type Reader struct {
	db *sql.DB
}

// Open opens the database at path immutable and read-only.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("zotero database not found at %s: %w", path, err)
	}

	params := url.Values{}
	params.Set("mode", "ro")
	params.Set("immutable", "1")
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open zotero database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping zotero database %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// OpenDB wraps an existing connection. Used by tests that build fixture
// schemas in memory.
func OpenDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Close releases the database handle.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Libraries lists every library known to the installation with item counts.
func (r *Reader) Libraries(ctx context.Context) ([]Library, error) {
	rows, err := r.db.QueryContext(ctx, listLibrariesStatement)
	if err != nil {
		return nil, fmt.Errorf("listing libraries: %w", err)
	}
	defer rows.Close()

	var libraries []Library
	for rows.Next() {
		var lib Library
		var feedName string
		if err := rows.Scan(&lib.LibraryID, &lib.Type, &lib.GroupID, &lib.Name, &lib.Description, &feedName, &lib.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning library row: %w", err)
		}
		if lib.Type == "feed" && lib.Name == "" {
			lib.Name = feedName
		}
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

// Feeds lists the RSS feed subscriptions.
func (r *Reader) Feeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, listFeedsStatement)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.LibraryID, &f.Name, &f.URL, &f.LastCheck, &f.LastCheckError, &f.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning feed row: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// FeedItems lists entries of one feed library, newest first. Offset skips
// that many entries so callers can page through large feeds.
func (r *Reader) FeedItems(ctx context.Context, libraryID int64, limit, offset int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, listFeedItemsStatement, libraryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing feed items for library %d: %w", libraryID, err)
	}
	defer rows.Close()

	var items []FeedItem
	for rows.Next() {
		var it FeedItem
		if err := rows.Scan(&it.Key, &it.Title, &it.URL, &it.Abstract, &it.Creators, &it.DateAdded, &it.ReadTime); err != nil {
			return nil, fmt.Errorf("scanning feed item row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
