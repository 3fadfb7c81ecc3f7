package authstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "authstate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStatusUnknownAccount(t *testing.T) {
	store := newTestStore(t)

	authenticated, username, err := store.Status("acme")
	require.NoError(t, err)
	assert.False(t, authenticated)
	assert.Empty(t, username)
}

func TestSaveAndStatusRoundTrip(t *testing.T) {
	store := newTestStore(t)
	state := []byte(`{"cookies":[{"name":"user_session","value":"abc"}]}`)

	require.NoError(t, store.Save("acme", "octocat", state))

	authenticated, username, err := store.Status("acme")
	require.NoError(t, err)
	assert.True(t, authenticated)
	assert.Equal(t, "octocat", username)

	got, err := store.StorageState("acme")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	// Other accounts are unaffected.
	authenticated, _, err = store.Status("globex")
	require.NoError(t, err)
	assert.False(t, authenticated)
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("acme", "octocat", []byte(`{"v":1}`)))
	require.NoError(t, store.Save("acme", "hubot", []byte(`{"v":2}`)))

	authenticated, username, err := store.Status("acme")
	require.NoError(t, err)
	assert.True(t, authenticated)
	assert.Equal(t, "hubot", username)

	state, err := store.StorageState("acme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(state))
}

func TestSaveEmptyUsername(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("acme", "", []byte(`{}`)))

	authenticated, username, err := store.Status("acme")
	require.NoError(t, err)
	assert.True(t, authenticated)
	assert.Empty(t, username)
}

func TestStorageStateUnknownAccountIsNil(t *testing.T) {
	store := newTestStore(t)

	state, err := store.StorageState("acme")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestReopenPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authstate.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save("acme", "octocat", []byte(`{"persisted":true}`)))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	authenticated, username, err := store.Status("acme")
	require.NoError(t, err)
	assert.True(t, authenticated)
	assert.Equal(t, "octocat", username)
}
