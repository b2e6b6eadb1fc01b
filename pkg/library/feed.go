package library

import (
	"context"
	"strconv"

	"github.com/zotkit/zotkit/pkg/localdb"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// feedClient serves a feed library out of the local zotero.sqlite. Feeds are
// not exposed through the Zotero HTTP APIs, so the feed tables are read
// directly and presented through the same client surface the HTTP backends
// use. The database reader is opened per call and closed before returning,
// matching every other localdb use site. Feeds are inherently read-only;
// every write returns ErrReadOnly.
type feedClient struct {
	open      func() (*localdb.Reader, error)
	libraryID int64
}

func newFeedClient(dbPath, libraryID string) *feedClient {
	id, _ := strconv.ParseInt(libraryID, 10, 64)
	return &feedClient{
		open:      func() (*localdb.Reader, error) { return localdb.Open(dbPath) },
		libraryID: id,
	}
}

func feedItemToItem(fi localdb.FeedItem) *zotero.Item {
	data := zotero.ItemData{
		"itemType":     "feedItem",
		"title":        fi.Title,
		"url":          fi.URL,
		"abstractNote": fi.Abstract,
		"dateAdded":    fi.DateAdded,
	}
	if fi.Creators != "" {
		data["creatorSummary"] = fi.Creators
	}
	return &zotero.Item{Key: fi.Key, Data: data}
}

func (f *feedClient) Item(ctx context.Context, key string) (*zotero.Item, error) {
	reader, err := f.open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	items, err := reader.FeedItems(ctx, f.libraryID, 10000, 0)
	if err != nil {
		return nil, err
	}
	for _, fi := range items {
		if fi.Key == key {
			return feedItemToItem(fi), nil
		}
	}
	return nil, zotero.ErrNotFound
}

func (f *feedClient) Items(ctx context.Context, q zotero.ItemQuery) ([]*zotero.Item, error) {
	reader, err := f.open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	feedItems, err := reader.FeedItems(ctx, f.libraryID, q.Limit, q.Start)
	if err != nil {
		return nil, err
	}
	items := make([]*zotero.Item, 0, len(feedItems))
	for _, fi := range feedItems {
		items = append(items, feedItemToItem(fi))
	}
	return items, nil
}

func (f *feedClient) Children(ctx context.Context, key string, q zotero.ItemQuery) ([]*zotero.Item, error) {
	// Feed entries never have attachments or notes.
	return nil, nil
}

func (f *feedClient) Collections(ctx context.Context, limit int) ([]*zotero.Collection, error) {
	return nil, nil
}

func (f *feedClient) Collection(ctx context.Context, key string) (*zotero.Collection, error) {
	return nil, zotero.ErrNotFound
}

func (f *feedClient) CollectionItems(ctx context.Context, key string, limit int) ([]*zotero.Item, error) {
	return nil, zotero.ErrNotFound
}

func (f *feedClient) Tags(ctx context.Context, limit int) ([]string, error) {
	return nil, nil
}

func (f *feedClient) FulltextItem(ctx context.Context, key string) (string, error) {
	return "", zotero.ErrNotFound
}

func (f *feedClient) DownloadAttachment(ctx context.Context, key, dir string) (string, error) {
	return "", zotero.ErrNotFound
}

func (f *feedClient) Groups(ctx context.Context) ([]*zotero.Group, error) {
	return nil, nil
}

func (f *feedClient) ItemTemplate(ctx context.Context, itemType string) (zotero.ItemData, error) {
	return nil, zotero.ErrReadOnly
}

func (f *feedClient) CreateItems(ctx context.Context, items []zotero.ItemData) (*zotero.WriteResult, error) {
	return nil, zotero.ErrReadOnly
}

func (f *feedClient) UpdateItem(ctx context.Context, item *zotero.Item) error {
	return zotero.ErrReadOnly
}

func (f *feedClient) DeleteItem(ctx context.Context, item *zotero.Item) error {
	return zotero.ErrReadOnly
}

func (f *feedClient) CreateCollections(ctx context.Context, cols []zotero.CollectionData) (*zotero.WriteResult, error) {
	return nil, zotero.ErrReadOnly
}

func (f *feedClient) UpdateCollection(ctx context.Context, col *zotero.Collection) error {
	return zotero.ErrReadOnly
}

func (f *feedClient) DeleteCollection(ctx context.Context, col *zotero.Collection) error {
	return zotero.ErrReadOnly
}

func (f *feedClient) AddToCollection(ctx context.Context, collectionKey string, item *zotero.Item) error {
	return zotero.ErrReadOnly
}

func (f *feedClient) RemoveFromCollection(ctx context.Context, collectionKey string, item *zotero.Item) error {
	return zotero.ErrReadOnly
}
