package zotero

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrNotFound is returned when the backend has no record for a key.
	ErrNotFound = errors.New("zotero: not found")

	// ErrReadOnly is returned by backends that cannot accept writes
	// (the feed-table adapter and the desktop app's read-only endpoint).
	ErrReadOnly = errors.New("zotero: backend is read-only")
)

// ItemQuery carries the server-side query parameters understood by the
// items endpoints. The zero value requests an unfiltered default page.
type ItemQuery struct {
	Q         string
	QMode     string // "titleCreatorYear" or "everything"
	ItemType  string // e.g. "note", "-attachment" to exclude
	Tags      []string
	Sort      string
	Direction string // "asc" or "desc"
	Start     int
	Limit     int
}

func (q ItemQuery) values() map[string][]string {
	v := map[string][]string{}
	if q.Q != "" {
		v["q"] = []string{q.Q}
	}
	if q.QMode != "" {
		v["qmode"] = []string{q.QMode}
	}
	if q.ItemType != "" {
		v["itemType"] = []string{q.ItemType}
	}
	if len(q.Tags) > 0 {
		v["tag"] = q.Tags
	}
	if q.Sort != "" {
		v["sort"] = []string{q.Sort}
	}
	if q.Direction != "" {
		v["direction"] = []string{q.Direction}
	}
	if q.Start > 0 {
		v["start"] = []string{strconv.Itoa(q.Start)}
	}
	if q.Limit > 0 {
		v["limit"] = []string{strconv.Itoa(q.Limit)}
	}
	return v
}

// Client is the backend surface every tool goes through. Implemented by the
// HTTP client (web and local API) and by the local feed-table adapter; tests
// substitute fakes.
type Client interface {
	Item(ctx context.Context, key string) (*Item, error)
	Items(ctx context.Context, q ItemQuery) ([]*Item, error)
	Children(ctx context.Context, key string, q ItemQuery) ([]*Item, error)

	Collections(ctx context.Context, limit int) ([]*Collection, error)
	Collection(ctx context.Context, key string) (*Collection, error)
	CollectionItems(ctx context.Context, key string, limit int) ([]*Item, error)

	Tags(ctx context.Context, limit int) ([]string, error)
	FulltextItem(ctx context.Context, key string) (string, error)
	DownloadAttachment(ctx context.Context, key, dir string) (string, error)
	Groups(ctx context.Context) ([]*Group, error)

	ItemTemplate(ctx context.Context, itemType string) (ItemData, error)
	CreateItems(ctx context.Context, items []ItemData) (*WriteResult, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, item *Item) error

	CreateCollections(ctx context.Context, cols []CollectionData) (*WriteResult, error)
	UpdateCollection(ctx context.Context, col *Collection) error
	DeleteCollection(ctx context.Context, col *Collection) error
	AddToCollection(ctx context.Context, collectionKey string, item *Item) error
	RemoveFromCollection(ctx context.Context, collectionKey string, item *Item) error
}
