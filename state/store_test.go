package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/route"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), params.EngineDBName), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJSONRoundTrip(t *testing.T) {
	s := testStore(t)

	in := &route.Group{ID: "group_a1", ActivityIDs: []string{"a1", "a2"}}
	if err := PutJSON(s, params.GroupsBucket, in.ID, in); err != nil {
		t.Fatal(err)
	}

	out, err := GetJSON[*route.Group](s, params.GroupsBucket, "group_a1")
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || len(out.ActivityIDs) != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)

	if _, err := GetJSON[*route.Group](s, params.GroupsBucket, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing bucket: err = %v, want ErrNotFound", err)
	}

	if err := PutJSON(s, params.GroupsBucket, "g", &route.Group{ID: "g"}); err != nil {
		t.Fatal(err)
	}
	if _, err := GetJSON[*route.Group](s, params.GroupsBucket, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndCount(t *testing.T) {
	s := testStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := PutJSON(s, params.ActivitiesBucket, id, id); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := s.Count(params.ActivitiesBucket); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	if err := s.DeleteKV(params.ActivitiesBucket, []byte("b")); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(params.ActivitiesBucket); n != 2 {
		t.Fatalf("count after delete = %d, want 2", n)
	}

	// Deleting from an absent bucket is a no-op.
	if err := s.DeleteKV([]byte("ghost"), []byte("b")); err != nil {
		t.Fatal(err)
	}
}

func TestAllJSON(t *testing.T) {
	s := testStore(t)

	for _, id := range []string{"g1", "g2"} {
		if err := PutJSON(s, params.GroupsBucket, id, &route.Group{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	groups, err := AllJSON[*route.Group](s, params.GroupsBucket)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, params.EngineDBName)

	s, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := PutJSON(s, params.MetaBucket, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := GetJSON[string](s2, params.MetaBucket, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v" {
		t.Errorf("got %q, want v", got)
	}
}

func TestCachesInvalidate(t *testing.T) {
	c, err := NewCaches()
	if err != nil {
		t.Fatal(err)
	}
	c.Tracks.Add("a1", orb.LineString{{0, 0}, {1, 1}})
	c.Consensus.Add("group_a1", orb.LineString{{0, 0}, {1, 1}})
	c.Invalidate("a1")
	if _, ok := c.Tracks.Get("a1"); ok {
		t.Error("track survived invalidation")
	}
	if _, ok := c.Consensus.Get("group_a1"); !ok {
		t.Error("consensus is keyed by group, activity invalidation should not touch it")
	}
	c.Purge()
	if _, ok := c.Consensus.Get("group_a1"); ok {
		t.Error("consensus survived purge")
	}
}
