package vecstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Snapshot header: magic bytes then a format version. The version
// gates compatibility; a mismatch refuses to load rather than guess.
var snapshotMagic = [4]byte{'M', 'N', 'I', 'X'}

const snapshotVersion uint32 = 1

// binIO wraps one side of the snapshot stream so the field-by-field
// encode/decode below stays flat: the first error sticks and every
// later call is a no-op.
type binIO struct {
	w   *bufio.Writer
	r   *bufio.Reader
	err error
}

func (b *binIO) put(v any) {
	if b.err == nil {
		b.err = binary.Write(b.w, binary.LittleEndian, v)
	}
}

func (b *binIO) putBytes(p []byte) {
	if b.err == nil {
		_, b.err = b.w.Write(p)
	}
}

func (b *binIO) get(v any) {
	if b.err == nil {
		b.err = binary.Read(b.r, binary.LittleEndian, v)
	}
}

func (b *binIO) getBytes(p []byte) {
	if b.err == nil {
		_, b.err = io.ReadFull(b.r, p)
	}
}

// Save writes the whole graph to w as one snapshot. Slot numbers are
// preserved verbatim so the link lists stay valid on load; freed slots
// are written as a single inactive marker to keep slot numbering
// aligned.
//
// Layout after the header: config (dim, M, efConstruction, efSearch),
// graph metadata (slot count, live count, top layer, entry slot), the
// free list, then one record per slot: an active flag, and for active
// slots the key, top layer, vector, and per-layer link lists.
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	b := &binIO{w: bufio.NewWriter(w)}

	b.putBytes(snapshotMagic[:])
	b.put(snapshotVersion)

	b.put(uint32(h.cfg.Dim))
	b.put(uint32(h.cfg.M))
	b.put(uint32(h.cfg.EfConstruction))
	b.put(uint32(h.cfg.EfSearch))

	b.put(uint32(len(h.slots)))
	b.put(uint32(h.live))
	b.put(uint32(h.top))
	b.put(h.entry)

	b.put(uint32(len(h.free)))
	for _, f := range h.free {
		b.put(f)
	}

	for _, nd := range h.slots {
		if nd == nil {
			b.put(uint8(0))
			continue
		}
		b.put(uint8(1))

		key := []byte(nd.key)
		b.put(uint32(len(key)))
		b.putBytes(key)

		b.put(uint32(nd.top))
		for _, v := range nd.vec {
			b.put(v)
		}

		for lev := 0; lev <= nd.top; lev++ {
			var links []uint32
			if lev < len(nd.links) {
				links = nd.links[lev]
			}
			b.put(uint32(len(links)))
			for _, l := range links {
				b.put(l)
			}
		}
	}

	if b.err != nil {
		return fmt.Errorf("vecstore: save snapshot: %w", b.err)
	}
	return b.w.Flush()
}

// LoadHNSW reads a snapshot written by Save and returns a graph ready
// to search and mutate.
func LoadHNSW(r io.Reader) (*HNSW, error) {
	b := &binIO{r: bufio.NewReader(r)}

	var magic [4]byte
	b.getBytes(magic[:])
	if b.err == nil && magic != snapshotMagic {
		return nil, fmt.Errorf("vecstore: not an index snapshot (magic %q)", magic[:])
	}

	var version uint32
	b.get(&version)
	if b.err == nil && version != snapshotVersion {
		return nil, fmt.Errorf("vecstore: unsupported snapshot version %d (want %d)", version, snapshotVersion)
	}

	var dim, m, efC, efS uint32
	b.get(&dim)
	b.get(&m)
	b.get(&efC)
	b.get(&efS)
	if b.err == nil && dim == 0 {
		return nil, fmt.Errorf("vecstore: snapshot has zero dimension")
	}

	var slotCount, live, top uint32
	var entry int32
	b.get(&slotCount)
	b.get(&live)
	b.get(&top)
	b.get(&entry)

	var freeCount uint32
	b.get(&freeCount)
	if b.err != nil {
		return nil, fmt.Errorf("vecstore: load snapshot: %w", b.err)
	}
	free := make([]uint32, freeCount)
	for i := range free {
		b.get(&free[i])
	}

	slots := make([]*node, slotCount)
	byKey := make(map[string]uint32, live)

	for i := uint32(0); i < slotCount && b.err == nil; i++ {
		var active uint8
		b.get(&active)
		if b.err != nil || active == 0 {
			continue
		}

		var keyLen uint32
		b.get(&keyLen)
		if b.err != nil {
			break
		}
		key := make([]byte, keyLen)
		b.getBytes(key)

		var nodeTop uint32
		b.get(&nodeTop)
		if b.err != nil {
			break
		}

		vec := make([]float32, dim)
		for j := range vec {
			b.get(&vec[j])
		}

		links := make([][]uint32, nodeTop+1)
		for lev := uint32(0); lev <= nodeTop && b.err == nil; lev++ {
			var n uint32
			b.get(&n)
			if b.err != nil || n == 0 {
				continue
			}
			links[lev] = make([]uint32, n)
			for k := range links[lev] {
				b.get(&links[lev][k])
			}
		}

		nd := &node{key: string(key), vec: vec, top: int(nodeTop), links: links}
		slots[i] = nd
		byKey[nd.key] = i
	}

	if b.err != nil {
		return nil, fmt.Errorf("vecstore: load snapshot: %w", b.err)
	}

	cfg := HNSWConfig{Dim: int(dim), M: int(m), EfConstruction: int(efC), EfSearch: int(efS)}
	cfg.setDefaults() // a snapshot with M < 2 would make invLogM infinite

	return &HNSW{
		cfg:     cfg,
		slots:   slots,
		byKey:   byKey,
		entry:   entry,
		top:     int(top),
		live:    int(live),
		free:    free,
		invLogM: 1.0 / math.Log(float64(cfg.M)),
	}, nil
}
