package cache

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"
)

// MemoryStore 是 Store 的内存实现，供处理器单测注入，避免触碰真实磁盘。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	modTime time.Time
}

// NewMemoryStore 返回一个空的内存缓存。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Has(ctx context.Context, assetPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := memoryKey(assetPath)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, assetPath string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := memoryKey(assetPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	return &ReadResult{
		Entry: Entry{
			Path:      assetPath,
			SizeBytes: int64(len(entry.data)),
			ModTime:   entry.modTime,
		},
		Reader: nopSeekCloser{bytes.NewReader(entry.data)},
	}, nil
}

func (s *MemoryStore) Put(ctx context.Context, assetPath string, body io.Reader, opts PutOptions) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := memoryKey(assetPath)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, modTime: modTime}
	s.mu.Unlock()

	return &Entry{
		Path:      assetPath,
		SizeBytes: int64(len(data)),
		ModTime:   modTime,
	}, nil
}

// memoryKey 与磁盘实现保持一致的路径规范化与越界拒绝语义。
func memoryKey(assetPath string) (string, error) {
	if assetPath == "" || assetPath == "/" || containsDotDot(assetPath) {
		return "", ErrInvalidPath
	}
	key := path.Clean("/" + assetPath)
	if strings.TrimPrefix(key, "/") == "" {
		return "", ErrInvalidPath
	}
	return key, nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
