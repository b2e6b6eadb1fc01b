package library

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// stubClient satisfies zotero.Client; only Items is steerable.
type stubClient struct {
	itemsErr error
	items    []*zotero.Item
}

func (s *stubClient) Item(ctx context.Context, key string) (*zotero.Item, error) {
	return nil, zotero.ErrNotFound
}
func (s *stubClient) Items(ctx context.Context, q zotero.ItemQuery) ([]*zotero.Item, error) {
	return s.items, s.itemsErr
}
func (s *stubClient) Children(ctx context.Context, key string, q zotero.ItemQuery) ([]*zotero.Item, error) {
	return nil, nil
}
func (s *stubClient) Collections(ctx context.Context, limit int) ([]*zotero.Collection, error) {
	return nil, nil
}
func (s *stubClient) Collection(ctx context.Context, key string) (*zotero.Collection, error) {
	return nil, zotero.ErrNotFound
}
func (s *stubClient) CollectionItems(ctx context.Context, key string, limit int) ([]*zotero.Item, error) {
	return nil, nil
}
func (s *stubClient) Tags(ctx context.Context, limit int) ([]string, error) { return nil, nil }
func (s *stubClient) FulltextItem(ctx context.Context, key string) (string, error) {
	return "", zotero.ErrNotFound
}
func (s *stubClient) DownloadAttachment(ctx context.Context, key, dir string) (string, error) {
	return "", zotero.ErrNotFound
}
func (s *stubClient) Groups(ctx context.Context) ([]*zotero.Group, error) { return nil, nil }
func (s *stubClient) ItemTemplate(ctx context.Context, itemType string) (zotero.ItemData, error) {
	return nil, zotero.ErrReadOnly
}
func (s *stubClient) CreateItems(ctx context.Context, items []zotero.ItemData) (*zotero.WriteResult, error) {
	return nil, zotero.ErrReadOnly
}
func (s *stubClient) UpdateItem(ctx context.Context, item *zotero.Item) error {
	return zotero.ErrReadOnly
}
func (s *stubClient) DeleteItem(ctx context.Context, item *zotero.Item) error {
	return zotero.ErrReadOnly
}
func (s *stubClient) CreateCollections(ctx context.Context, cols []zotero.CollectionData) (*zotero.WriteResult, error) {
	return nil, zotero.ErrReadOnly
}
func (s *stubClient) UpdateCollection(ctx context.Context, col *zotero.Collection) error {
	return zotero.ErrReadOnly
}
func (s *stubClient) DeleteCollection(ctx context.Context, col *zotero.Collection) error {
	return zotero.ErrReadOnly
}
func (s *stubClient) AddToCollection(ctx context.Context, collectionKey string, item *zotero.Item) error {
	return zotero.ErrReadOnly
}
func (s *stubClient) RemoveFromCollection(ctx context.Context, collectionKey string, item *zotero.Item) error {
	return zotero.ErrReadOnly
}

func managerWithStub(stub *stubClient) (*Manager, *[]Selection) {
	var built []Selection
	m := NewManagerWithFactory(zerolog.Nop(), func(ctx context.Context, env config.Env, sel Selection) (zotero.Client, error) {
		built = append(built, sel)
		return stub, nil
	})
	return m, &built
}

func TestResolvePrefersOverride(t *testing.T) {
	t.Setenv("ZOTERO_LIBRARY_ID", "111")
	t.Setenv("ZOTERO_LIBRARY_TYPE", "user")

	m, _ := managerWithStub(&stubClient{})
	env := config.Read()

	require.Equal(t, Selection{ID: "111", Type: "user"}, m.Resolve(env))

	m.SetActive(Selection{ID: "222", Type: "group"})
	require.Equal(t, Selection{ID: "222", Type: "group"}, m.Resolve(env))

	m.ClearActive()
	require.Equal(t, Selection{ID: "111", Type: "user"}, m.Resolve(env))
}

func TestValidateSwitch(t *testing.T) {
	m, _ := managerWithStub(&stubClient{})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := m.ValidateSwitch(Selection{ID: "1", Type: "shelf"})
		require.ErrorContains(t, err, "invalid library type")
	})
	t.Run("rejects non-numeric ID", func(t *testing.T) {
		_, err := m.ValidateSwitch(Selection{ID: "abc", Type: "user"})
		require.ErrorContains(t, err, "must be numeric")
	})
	t.Run("rejects empty ID", func(t *testing.T) {
		_, err := m.ValidateSwitch(Selection{Type: "user"})
		require.ErrorContains(t, err, "required")
	})
	t.Run("normalizes type case", func(t *testing.T) {
		sel, err := m.ValidateSwitch(Selection{ID: "5", Type: " User "})
		require.NoError(t, err)
		require.Equal(t, "user", sel.Type)
	})
	t.Run("feed requires local mode", func(t *testing.T) {
		t.Setenv("ZOTERO_LOCAL", "false")
		_, err := m.ValidateSwitch(Selection{ID: "3", Type: "feed"})
		require.ErrorContains(t, err, "local mode")
	})
	t.Run("web group requires API key", func(t *testing.T) {
		t.Setenv("ZOTERO_LOCAL", "")
		t.Setenv("ZOTERO_API_KEY", "")
		_, err := m.ValidateSwitch(Selection{ID: "9", Type: "group"})
		require.ErrorContains(t, err, "ZOTERO_API_KEY")
	})
}

func TestSwitchCommitsAfterProbe(t *testing.T) {
	t.Setenv("ZOTERO_LOCAL", "")
	t.Setenv("ZOTERO_API_KEY", "k")
	stub := &stubClient{items: []*zotero.Item{{Key: "A"}}}
	m, built := managerWithStub(stub)

	result, err := m.Switch(context.Background(), Selection{ID: "42", Type: "group"})
	require.NoError(t, err)
	require.Equal(t, Selection{ID: "42", Type: "group"}, result.Current)
	require.Equal(t, 1, result.SampleSize)

	active, ok := m.Active()
	require.True(t, ok)
	require.Equal(t, "42", active.ID)
	require.NotEmpty(t, *built)
}

func TestSwitchRollsBackOnProbeFailure(t *testing.T) {
	t.Setenv("ZOTERO_LOCAL", "")
	t.Setenv("ZOTERO_API_KEY", "k")
	stub := &stubClient{itemsErr: errors.New("connection refused")}
	m, _ := managerWithStub(stub)

	t.Run("without prior override reverts to defaults", func(t *testing.T) {
		_, err := m.Switch(context.Background(), Selection{ID: "42", Type: "group"})
		require.ErrorContains(t, err, "cannot access library")
		_, ok := m.Active()
		require.False(t, ok)
	})

	t.Run("with prior override restores it", func(t *testing.T) {
		m.SetActive(Selection{ID: "7", Type: "user"})
		_, err := m.Switch(context.Background(), Selection{ID: "42", Type: "group"})
		require.Error(t, err)
		active, ok := m.Active()
		require.True(t, ok)
		require.Equal(t, Selection{ID: "7", Type: "user"}, active)
	})
}
