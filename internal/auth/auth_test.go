package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloroute/veloroute_core/internal/domain"
)

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:lookup", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"users":[{"localId":"user-123"}]}`)
	}))
	defer server.Close()

	userID, err := NewVerifier(server.URL, "test-key").Verify(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestVerifyInvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"INVALID_ID_TOKEN"}}`)
	}))
	defer server.Close()

	_, err := NewVerifier(server.URL, "test-key").Verify(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
}

func TestVerifyEmptyToken(t *testing.T) {
	_, err := NewVerifier("http://unused", "k").Verify(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
}

func TestVerifyNoUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[]}`)
	}))
	defer server.Close()

	_, err := NewVerifier(server.URL, "test-key").Verify(context.Background(), "some-token")
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
}

func TestVerifyBackendDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewVerifier(server.URL, "test-key").Verify(context.Background(), "some-token")
	require.Error(t, err)
	assert.Equal(t, domain.KindExternal, domain.KindOf(err))
}

func TestReservedList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reserved.txt")
	require.NoError(t, os.WriteFile(path, []byte("admin\nroot\n\n# comment\n  spaced  \n"), 0o644))

	list := NewReservedList(path)
	ctx := context.Background()

	for _, id := range []string{"admin", "root", "spaced"} {
		reserved, err := list.IsReserved(ctx, id)
		require.NoError(t, err)
		assert.True(t, reserved, id)
	}

	reserved, err := list.IsReserved(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, reserved)

	reserved, err = list.IsReserved(ctx, "# comment")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestReservedListMissingFile(t *testing.T) {
	list := NewReservedList(filepath.Join(t.TempDir(), "nope.txt"))
	reserved, err := list.IsReserved(context.Background(), "admin")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestReservedListCachesAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reserved.txt")
	require.NoError(t, os.WriteFile(path, []byte("admin\n"), 0o644))

	list := NewReservedList(path)
	ctx := context.Background()

	reserved, err := list.IsReserved(ctx, "admin")
	require.NoError(t, err)
	require.True(t, reserved)

	// The cached set survives file changes until the refresh interval.
	require.NoError(t, os.WriteFile(path, []byte("other\n"), 0o644))
	reserved, err = list.IsReserved(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, reserved)
}
