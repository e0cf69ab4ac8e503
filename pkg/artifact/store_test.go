package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frauddetect/pkg/config"
)

func TestLocalStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())
	require.NoError(t, s.Put(ctx, "a/b/model.zip", strings.NewReader("payload")))

	rc, err := s.Get(ctx, "a/b/model.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalStoreKeysStayInside(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStore(filepath.Join(root, "store"))
	require.NoError(t, s.Put(context.Background(), "../../escape.txt", strings.NewReader("x")))
	_, err := os.Stat(filepath.Join(root, "store", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.Error(t, err)

	assert.Error(t, s.Put(context.Background(), "/", strings.NewReader("x")))
}

func TestLocalStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewLocalStore(t.TempDir())
	assert.ErrorIs(t, s.Put(ctx, "k", strings.NewReader("x")), context.Canceled)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishFetch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "model.zip")
	require.NoError(t, os.WriteFile(src, []byte("zipbytes"), 0o644))

	store := NewLocalStore(filepath.Join(dir, "remote"))
	require.NoError(t, Publish(ctx, store, src, "models/model.zip"))

	dst := filepath.Join(dir, "fetched", "model.zip")
	require.NoError(t, Fetch(ctx, store, "models/model.zip", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(data))

	var pe *PersistenceError
	assert.ErrorAs(t, Fetch(ctx, store, "missing.zip", dst), &pe)
	assert.ErrorAs(t, Publish(ctx, store, filepath.Join(dir, "none"), "x"), &pe)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "models/fd/model.zip", objectKey("/models/fd/", "model.zip"))
	assert.Equal(t, "model.zip", objectKey("", "/model.zip"))
}

func TestNewS3StoreNeedsBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

// fakeS3 answers path-style PutObject and GetObject requests.
type fakeS3 struct {
	mu      sync.Mutex
	puts    []string
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3StoreAgainstFakeEndpoint(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"/bucket/models/fd/model.zip": "remote-bytes"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3Store(ctx, config.S3Config{
		Bucket:          "bucket",
		Region:          "us-east-1",
		Prefix:          "models/fd",
		Endpoint:        srv.URL,
		PathStyle:       true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "model.zip", strings.NewReader("local-bytes")))
	fake.mu.Lock()
	assert.Equal(t, []string{"/bucket/models/fd/model.zip"}, fake.puts)
	fake.mu.Unlock()

	rc, err := store.Get(ctx, "model.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "remote-bytes", string(data))

	_, err = store.Get(ctx, "absent.zip")
	assert.Error(t, err)
}
