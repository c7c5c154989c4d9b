package toolcache

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestSetThenGet(t *testing.T) {
	c := New()
	now := time.Unix(1000, 0)
	c.Set("k", json.RawMessage(`{"a":1}`), now)

	e, ok := c.Get("k")
	if !ok {
		t.Fatal("Get returned ok=false for present key")
	}
	if string(e.Value) != `{"a":1}` || !e.FetchedAt.Equal(now) {
		t.Fatalf("Get = %+v", e)
	}
}

func TestGetMissingKeyReturnsNoValue(t *testing.T) {
	c := New()
	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get on missing key returned ok=true")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("k", json.RawMessage(`1`), time.Now())
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get after Delete returned ok=true")
	}
}

func TestSnapshotBlockingClonesAllEntries(t *testing.T) {
	c := New()
	c.Set("a", json.RawMessage(`1`), time.Now())
	c.Set("b", json.RawMessage(`2`), time.Now())
	snap := c.SnapshotBlocking()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	c.Set("c", json.RawMessage(`3`), time.Now())
	if len(snap) != 2 {
		t.Fatal("snapshot mutated after later Set — SnapshotBlocking must clone")
	}
}

func TestConcurrentSetAndGetNeverRaces(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("k", json.RawMessage(`1`), time.Now())
		}()
		go func() {
			defer wg.Done()
			c.Get("k")
		}()
	}
	wg.Wait()
}
