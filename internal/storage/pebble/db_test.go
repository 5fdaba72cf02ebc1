package pebblestore

import (
	"errors"
	"testing"
	"time"
)

type testMetrics struct {
	wrote        int
	read         int
	batchCommits int
}

func (m *testMetrics) ObserveWrite(d time.Duration, bytes int) { m.wrote += bytes }
func (m *testMetrics) ObserveRead(d time.Duration, bytes int)  { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestCRUD(t *testing.T) {
	db, metrics := newTestDB(t)

	key := []byte("graphs/projections/latest/g1.json")
	val := []byte(`{"id":"g1"}`)
	if err := db.Set(key, val); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("got %q want %q", got, val)
	}
	if metrics.read == 0 || metrics.wrote == 0 {
		t.Fatalf("expected metrics observations, got %+v", metrics)
	}

	if err := db.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)

	keys := []string{
		"subscriptions/blah/123456/localhost",
		"subscriptions/blah/789/localhost",
		"subscriptions/other/123456/localhost",
	}
	for _, k := range keys {
		if err := db.Set([]byte(k), []byte("{}")); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	var seen []string
	err := db.ScanPrefix([]byte("subscriptions/blah/"), func(k, _ []byte) bool {
		seen = append(seen, string(k))
		return true
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 keys, got %v", seen)
	}
	if seen[0] != keys[0] || seen[1] != keys[1] {
		t.Fatalf("unexpected order: %v", seen)
	}
}

func TestDeleteRange(t *testing.T) {
	db, _ := newTestDB(t)

	for _, k := range []string{"graphs/g1/events/a", "graphs/g1/events/b", "graphs/g2/events/a"} {
		if err := db.Set([]byte(k), []byte("{}")); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := db.DeleteRange([]byte("graphs/g1/"), []byte("graphs/g10")); err != nil {
		t.Fatalf("delete range: %v", err)
	}
	if _, err := db.Get([]byte("graphs/g1/events/a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected range-deleted key gone, got %v", err)
	}
	if _, err := db.Get([]byte("graphs/g2/events/a")); err != nil {
		t.Fatalf("sibling prefix should survive: %v", err)
	}
}
