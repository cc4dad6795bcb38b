package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/courierhq/courier/pkg/engine"
)

func sampleExchange(url string) *Exchange {
	return &Exchange{
		Method:   "GET",
		URL:      url,
		BodyType: "raw",
		Response: engine.Outcome{Status: 200, StatusText: "OK", Data: "ok", Time: 12},
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.Create(ctx, sampleExchange("https://example.com/one"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned an empty id")
	}

	got, err := m.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.URL != "https://example.com/one" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if got.Response.Status != 200 {
		t.Errorf("Response.Status = %d", got.Response.Status)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListRecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for i := 0; i < 5; i++ {
		if _, err := m.Create(ctx, sampleExchange(fmt.Sprintf("https://example.com/%d", i))); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	got, err := m.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, wantURL := range []string{"https://example.com/4", "https://example.com/3", "https://example.com/2"} {
		if got[i].URL != wantURL {
			t.Errorf("got[%d].URL = %q, want %q", i, got[i].URL, wantURL)
		}
	}

	// A non-positive limit falls back to the default and returns everything
	// stored here.
	all, err := m.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent(0): %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len = %d, want 5", len(all))
	}
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.Create(ctx, sampleExchange("https://example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.DeleteByID(ctx, id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := m.DeleteByID(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := m.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestMemoryStoreDeleteAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for i := 0; i < 3; i++ {
		if _, err := m.Create(ctx, sampleExchange("https://example.com")); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := m.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	got, err := m.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.max = 2

	first, _ := m.Create(ctx, sampleExchange("https://example.com/0"))
	m.Create(ctx, sampleExchange("https://example.com/1"))
	m.Create(ctx, sampleExchange("https://example.com/2"))

	if _, err := m.GetByID(ctx, first); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest record should be evicted, got err = %v", err)
	}
	got, err := m.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].URL != "https://example.com/2" || got[1].URL != "https://example.com/1" {
		t.Errorf("unexpected survivors: %q, %q", got[0].URL, got[1].URL)
	}
}

func TestMemoryStorePing(t *testing.T) {
	if err := NewMemoryStore().Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
