package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	assetPath := "/assets/app.css"

	if _, err := store.Get(context.Background(), assetPath); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	payload := []byte("body { color: red }")
	if _, err := store.Put(context.Background(), assetPath, bytes.NewReader(payload), PutOptions{}); err != nil {
		t.Fatalf("put error: %v", err)
	}

	ok, err := store.Has(context.Background(), assetPath)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}

	result, err := store.Get(context.Background(), assetPath)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	body, _ := io.ReadAll(result.Reader)
	if string(body) != string(payload) {
		t.Fatalf("payload mismatch: %s", string(body))
	}
}

func TestMemoryStoreRejectsTraversalPaths(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Put(context.Background(), "/assets/../../x", bytes.NewReader(nil), PutOptions{}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}
