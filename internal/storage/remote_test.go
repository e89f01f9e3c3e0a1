package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeS3 serves path-style PutObject and GetObject for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, "/"+f.bucket+"/")
	if !ok {
		http.Error(w, "wrong bucket", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RESPONSE_CHECKSUM_VALIDATION", "when_required")
}

func TestS3StorageThroughClient(t *testing.T) {
	isolateAWSEnv(t)
	fake := &fakeS3{bucket: "krscope-test", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s3s, err := NewS3Storage(ctx, S3Config{
		Bucket:    "krscope-test",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("NewS3Storage: %v", err)
	}
	var c Client = s3s

	data := []byte(`{"schema_version":1}`)
	if err := c.PutGraph(ctx, "growth", "g1", data); err != nil {
		t.Fatalf("PutGraph: %v", err)
	}
	if !fake.has("growth/graphs/g1.json") {
		t.Error("object not stored under growth/graphs/g1.json")
	}

	got, err := c.GetGraph(ctx, "growth", "g1")
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetGraph = %q, want %q", got, data)
	}

	if _, err := c.GetResult(ctx, "growth", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetResult err = %v, want ErrNotFound", err)
	}
}

func TestGCSStorageMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"No such object"}}`)
	}))
	defer srv.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", srv.Listener.Addr().String())

	ctx := context.Background()
	gs, err := NewGCSStorage(ctx, "krscope-test")
	if err != nil {
		t.Fatalf("NewGCSStorage: %v", err)
	}
	defer gs.Close()

	var c Client = gs
	if _, err := c.GetGraph(ctx, "growth", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGraph err = %v, want ErrNotFound", err)
	}
}
