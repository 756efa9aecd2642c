package vecstore

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"
)

func randomVecs(n, dim int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func fillHNSW(t *testing.T, h *HNSW, vecs [][]float32) {
	t.Helper()
	for i, v := range vecs {
		if err := h.Insert(fmt.Sprintf("m%d", i), v); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
}

func TestHNSWDimensionMismatch(t *testing.T) {
	h := NewHNSW(HNSWConfig{Dim: 4})
	if err := h.Insert("a", []float32{1, 0}); err == nil {
		t.Fatal("expected dimension error on Insert")
	}
	if _, err := h.Search([]float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension error on Search")
	}
}

func TestHNSWSearchFindsExactMatch(t *testing.T) {
	const dim = 16
	h := NewHNSW(HNSWConfig{Dim: dim})
	vecs := randomVecs(200, dim, 1)
	fillHNSW(t, h, vecs)

	if h.Len() != 200 {
		t.Fatalf("Len = %d, want 200", h.Len())
	}

	// Searching with an indexed vector must return it first at
	// distance ~0.
	for _, i := range []int{0, 42, 199} {
		matches, err := h.Search(vecs[i], 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if want := fmt.Sprintf("m%d", i); matches[0].ID != want {
			t.Errorf("nearest to vecs[%d] = %s, want %s", i, matches[0].ID, want)
		}
		if matches[0].Distance > 1e-5 {
			t.Errorf("self-distance = %f, want ~0", matches[0].Distance)
		}
	}
}

func TestHNSWRecallAgainstBruteForce(t *testing.T) {
	const dim, n, k = 16, 300, 10
	vecs := randomVecs(n, dim, 2)

	h := NewHNSW(HNSWConfig{Dim: dim})
	exact := NewMemory()
	for i, v := range vecs {
		id := fmt.Sprintf("m%d", i)
		if err := h.Insert(id, v); err != nil {
			t.Fatal(err)
		}
		if err := exact.Insert(id, v); err != nil {
			t.Fatal(err)
		}
	}

	queries := randomVecs(20, dim, 3)
	hits, total := 0, 0
	for _, q := range queries {
		want, err := exact.Search(q, k)
		if err != nil {
			t.Fatal(err)
		}
		got, err := h.Search(q, k)
		if err != nil {
			t.Fatal(err)
		}
		wantSet := make(map[string]bool, len(want))
		for _, m := range want {
			wantSet[m.ID] = true
		}
		for _, m := range got {
			if wantSet[m.ID] {
				hits++
			}
		}
		total += len(want)
	}

	recall := float64(hits) / float64(total)
	if recall < 0.85 {
		t.Fatalf("recall = %.2f, want >= 0.85", recall)
	}
}

func TestHNSWSearchAscendingByDistance(t *testing.T) {
	const dim = 8
	h := NewHNSW(HNSWConfig{Dim: dim})
	fillHNSW(t, h, randomVecs(100, dim, 4))

	q := randomVecs(1, dim, 5)[0]
	matches, err := h.Search(q, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Distance > matches[i].Distance {
			t.Fatal("matches not ascending by distance")
		}
	}
}

func TestHNSWInsertReplaces(t *testing.T) {
	h := NewHNSW(HNSWConfig{Dim: 2})
	if err := h.Insert("a", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := h.Insert("a", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}

	matches, err := h.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].ID != "a" || matches[0].Distance > 1e-6 {
		t.Fatalf("replacement not in effect: %+v", matches[0])
	}
}

func TestHNSWDeleteAndReuse(t *testing.T) {
	const dim = 8
	h := NewHNSW(HNSWConfig{Dim: dim})
	vecs := randomVecs(50, dim, 6)
	fillHNSW(t, h, vecs)

	// Deleting an absent id is a no-op.
	if err := h.Delete("never-there"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 25; i++ {
		if err := h.Delete(fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 25 {
		t.Fatalf("Len = %d, want 25", h.Len())
	}

	// Deleted ids never come back from a search.
	q := randomVecs(1, dim, 7)[0]
	matches, err := h.Search(q, 25)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		var i int
		fmt.Sscanf(m.ID, "m%d", &i)
		if i < 25 {
			t.Fatalf("deleted id %s returned from search", m.ID)
		}
	}

	// Freed slots are recycled by later inserts.
	fresh := randomVecs(25, dim, 8)
	for i, v := range fresh {
		if err := h.Insert(fmt.Sprintf("n%d", i), v); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 50 {
		t.Fatalf("Len after refill = %d, want 50", h.Len())
	}
}

func TestHNSWDeleteEntryPoint(t *testing.T) {
	const dim = 4
	h := NewHNSW(HNSWConfig{Dim: dim})
	vecs := randomVecs(30, dim, 9)
	fillHNSW(t, h, vecs)

	// Delete whatever the entry point is; search must still work.
	entryKey := h.slots[h.entry].key
	if err := h.Delete(entryKey); err != nil {
		t.Fatal(err)
	}

	matches, err := h.Search(vecs[0], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches after deleting entry point")
	}
}

func TestHNSWDeleteAll(t *testing.T) {
	const dim = 4
	h := NewHNSW(HNSWConfig{Dim: dim})
	fillHNSW(t, h, randomVecs(10, dim, 10))

	for i := 0; i < 10; i++ {
		if err := h.Delete(fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
	matches, err := h.Search(randomVecs(1, dim, 11)[0], 5)
	if err != nil || matches != nil {
		t.Fatalf("empty graph: got %v, %v", matches, err)
	}

	// And it accepts new vectors again.
	if err := h.Insert("again", randomVecs(1, dim, 12)[0]); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
}

func TestHNSWSnapshotRoundTrip(t *testing.T) {
	const dim = 8
	h := NewHNSW(HNSWConfig{Dim: dim, M: 8, EfConstruction: 100, EfSearch: 40})
	vecs := randomVecs(120, dim, 13)
	fillHNSW(t, h, vecs)
	// Leave a few holes so the free list round-trips too.
	h.Delete("m3")
	h.Delete("m77")

	var buf bytes.Buffer
	if err := h.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadHNSW(&buf)
	if err != nil {
		t.Fatalf("LoadHNSW: %v", err)
	}
	if loaded.Len() != h.Len() {
		t.Fatalf("loaded Len = %d, want %d", loaded.Len(), h.Len())
	}
	if loaded.cfg != h.cfg {
		t.Fatalf("loaded cfg = %+v, want %+v", loaded.cfg, h.cfg)
	}

	// The loaded graph answers queries identically.
	for _, i := range []int{0, 50, 119} {
		want, err := h.Search(vecs[i], 5)
		if err != nil {
			t.Fatal(err)
		}
		got, err := loaded.Search(vecs[i], 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("loaded search returned %d, want %d", len(got), len(want))
		}
		for j := range want {
			if got[j].ID != want[j].ID {
				t.Errorf("loaded search[%d] = %s, want %s", j, got[j].ID, want[j].ID)
			}
		}
	}

	// And stays mutable.
	if err := loaded.Insert("new", randomVecs(1, dim, 14)[0]); err != nil {
		t.Fatalf("Insert after load: %v", err)
	}
}

func TestLoadHNSWRejectsGarbage(t *testing.T) {
	_, err := LoadHNSW(bytes.NewReader([]byte("not a snapshot at all")))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}

	// Right magic, wrong version.
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.Write([]byte{99, 0, 0, 0})
	_, err = LoadHNSW(&buf)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
