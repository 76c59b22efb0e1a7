package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
)

func TestFetchStoresAndReturnsBody(t *testing.T) {
	payload := []byte("console.log('remote')")
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/assets/app.js" {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	store := cache.NewMemoryStore()
	fetcher := newTestFetcher(t, upstream.URL, store)

	body, err := fetcher.Fetch(context.Background(), "/assets/app.js")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("body mismatch: %s", string(body))
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits.Load())
	}

	result, err := store.Get(context.Background(), "/assets/app.js")
	if err != nil {
		t.Fatalf("expected cached entry: %v", err)
	}
	cached, _ := io.ReadAll(result.Reader)
	if string(cached) != string(payload) {
		t.Fatalf("cached bytes differ from served bytes")
	}
}

func TestFetchCoalescesConcurrentRequests(t *testing.T) {
	payload := []byte("shared body bytes")
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	fetcher := newTestFetcher(t, upstream.URL, cache.NewMemoryStore())

	const workers = 8
	var wg sync.WaitGroup
	bodies := make([][]byte, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			bodies[idx], errs[idx] = fetcher.Fetch(context.Background(), "/assets/big.png")
		}(i)
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Fatalf("expected exactly one upstream fetch, got %d", hits.Load())
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if string(bodies[i]) != string(payload) {
			t.Fatalf("worker %d got truncated body: %q", i, bodies[i])
		}
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	store := cache.NewMemoryStore()
	fetcher := newTestFetcher(t, upstream.URL, store)

	_, err := fetcher.Fetch(context.Background(), "/assets/gone.js")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", fetchErr.Status)
	}

	if ok, _ := store.Has(context.Background(), "/assets/gone.js"); ok {
		t.Fatalf("failed fetch must not create a cache entry")
	}
}

func TestFetchNetworkError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // 立刻关闭，制造连接失败

	fetcher := newTestFetcher(t, upstream.URL, cache.NewMemoryStore())

	_, err := fetcher.Fetch(context.Background(), "/assets/app.js")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != 0 {
		t.Fatalf("network errors carry no upstream status, got %d", fetchErr.Status)
	}
}

func TestFetchTimeoutSurfacesAsFetchError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	origin, _ := url.Parse(upstream.URL)
	client := &http.Client{Timeout: 20 * time.Millisecond}
	fetcher := New(client, origin, cache.NewMemoryStore(), discardLogger())

	_, err := fetcher.Fetch(context.Background(), "/assets/slow.js")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
}

func TestFetchCacheWriteError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer upstream.Close()

	fetcher := newTestFetcher(t, upstream.URL, failingStore{})

	_, err := fetcher.Fetch(context.Background(), "/assets/app.js")
	var writeErr *CacheWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected CacheWriteError, got %v", err)
	}
}

// failingStore 模拟磁盘满等写入失败场景。
type failingStore struct{}

func (failingStore) Has(context.Context, string) (bool, error) { return false, nil }

func (failingStore) Get(context.Context, string) (*cache.ReadResult, error) {
	return nil, cache.ErrNotFound
}

func (failingStore) Put(context.Context, string, io.Reader, cache.PutOptions) (*cache.Entry, error) {
	return nil, errors.New("disk full")
}

func newTestFetcher(t *testing.T, upstreamURL string, store cache.Store) *Fetcher {
	t.Helper()
	origin, err := url.Parse(upstreamURL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	return New(&http.Client{Timeout: 5 * time.Second}, origin, store, discardLogger())
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
