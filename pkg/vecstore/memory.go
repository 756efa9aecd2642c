package vecstore

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Memory is the exact, brute-force Index: a map of id to vector,
// scanned in full on every search. Below roughly a thousand rows the
// scan beats graph traversal, which is why the store's small-table
// fallback runs on it; it is also what every test suite uses.
type Memory struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

// NewMemory builds an empty brute-force index.
func NewMemory() *Memory {
	return &Memory{vecs: make(map[string][]float32)}
}

func (m *Memory) Insert(id string, vector []float32) error {
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.mu.Lock()
	m.vecs[id] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vecs) == 0 || topK <= 0 {
		return nil, nil
	}

	scored := make([]Match, 0, len(m.vecs))
	for id, vec := range m.vecs {
		scored = append(scored, Match{ID: id, Distance: CosineDistance(query, vec)})
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	delete(m.vecs, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}

func (m *Memory) Close() error {
	return nil
}

var _ Index = (*Memory)(nil)

// CosineDistance is 1 minus the cosine similarity of a and b, so 0 is
// identical direction and 2 is opposite. Mismatched dimensions and
// zero-norm vectors report maximum distance: neither has a meaningful
// direction to compare.
//
// Dot products and norms are delegated to gonum/floats rather than
// hand-rolled accumulation loops, since this is the one place in the
// index where vector arithmetic is on the hot path.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	af, bf := toFloat64(a), toFloat64(b)
	normA := math.Sqrt(floats.Dot(af, af))
	normB := math.Sqrt(floats.Dot(bf, bf))
	if normA == 0 || normB == 0 {
		return 2
	}

	similarity := floats.Dot(af, bf) / (normA * normB)
	// Clamp against floating-point drift past +/-1.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return float32(1 - similarity)
}

// toFloat64 widens v for gonum/floats, which operates on float64 slices.
func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
