// Package fetch mirrors remote assets into the local cache store. Each path
// is fetched at most once at a time: concurrent requesters for the same
// uncached path share a single in-flight upstream request and all receive the
// same complete byte sequence.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
)

// Fetcher 负责 “回源 GET → 缓存写入 → 正文交付” 的镜像全流程。
// 正文先完整缓冲再落盘，客户端永远不会观察到写了一半的文件。
type Fetcher struct {
	client *http.Client
	origin *url.URL
	store  cache.Store
	logger *logrus.Logger

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

// fetchCall 是同一路径并发首请求共享的单次回源结果。
type fetchCall struct {
	done chan struct{}
	body []byte
	err  error
}

// New 构造 Fetcher，client/origin/store 均为进程级共享实例。
func New(client *http.Client, origin *url.URL, store cache.Store, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		origin:   origin,
		store:    store,
		logger:   logger,
		inflight: make(map[string]*fetchCall),
	}
}

// Fetch 返回 assetPath 的完整正文。若同路径已有回源在途，则等待并共享其结果；
// 否则发起唯一一次上游请求，成功后写入缓存。失败以 *FetchError / *CacheWriteError 返回。
func (f *Fetcher) Fetch(ctx context.Context, assetPath string) ([]byte, error) {
	f.mu.Lock()
	if call, ok := f.inflight[assetPath]; ok {
		f.mu.Unlock()
		select {
		case <-call.done:
			return call.body, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &fetchCall{done: make(chan struct{})}
	f.inflight[assetPath] = call
	f.mu.Unlock()

	call.body, call.err = f.fetchOnce(ctx, assetPath)
	close(call.done)

	f.mu.Lock()
	delete(f.inflight, assetPath)
	f.mu.Unlock()

	return call.body, call.err
}

func (f *Fetcher) fetchOnce(ctx context.Context, assetPath string) ([]byte, error) {
	started := time.Now()
	upstreamURL := f.origin.ResolveReference(&url.URL{Path: assetPath})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL.String(), http.NoBody)
	if err != nil {
		return nil, &FetchError{Path: assetPath, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logFetch(assetPath, upstreamURL.String(), 0, 0, started, err)
		return nil, &FetchError{Path: assetPath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		f.logFetch(assetPath, upstreamURL.String(), resp.StatusCode, 0, started, nil)
		return nil, &FetchError{Path: assetPath, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logFetch(assetPath, upstreamURL.String(), resp.StatusCode, 0, started, err)
		return nil, &FetchError{Path: assetPath, Err: err}
	}

	opts := cache.PutOptions{ModTime: extractModTime(resp.Header)}
	if _, err := f.store.Put(ctx, assetPath, bytes.NewReader(body), opts); err != nil {
		f.logFetch(assetPath, upstreamURL.String(), resp.StatusCode, len(body), started, err)
		return nil, &CacheWriteError{Path: assetPath, Err: err}
	}

	f.logFetch(assetPath, upstreamURL.String(), resp.StatusCode, len(body), started, nil)
	return body, nil
}

func (f *Fetcher) logFetch(assetPath, upstream string, status, size int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":          "mirror_fetch",
		"path":            assetPath,
		"upstream":        upstream,
		"upstream_status": status,
		"bytes":           size,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		f.logger.WithFields(fields).Error("fetch_failed")
		return
	}
	if status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		f.logger.WithFields(fields).Error("fetch_failed")
		return
	}
	f.logger.WithFields(fields).Info("fetch_complete")
}

func extractModTime(header http.Header) time.Time {
	if last := header.Get("Last-Modified"); last != "" {
		if parsed, err := http.ParseTime(last); err == nil {
			return parsed.UTC()
		}
	}
	return time.Now().UTC()
}
