package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mnemohq/mnemo/pkg/kv"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/storage"
	"github.com/mnemohq/mnemo/pkg/vecstore"
)

// backend implements Store over any kv.Store + vecstore.Index pair. Both
// the in-memory test backend and the production Badger+HNSW backend are
// thin constructors around this shared implementation; the same
// generic-interface-over-pluggable-backends shape kv and vecstore use
// themselves.
type backend struct {
	kv  kv.Store
	vec vecstore.Index

	// annMinRows is the row count past which Search consults the ANN
	// index; below it the backend falls back to a brute-force scan,
	// where exact distances cost less than walking the graph.
	annMinRows int

	// index is set only by the Badger backend, for persisting the HNSW
	// graph across restarts. Nil for the in-memory test backend.
	index storage.FileStore

	closeKV  bool
	closeVec bool
}

func newBackend(store kv.Store, vec vecstore.Index, annMinRows int) *backend {
	return &backend{kv: store, vec: vec, annMinRows: annMinRows}
}

func (b *backend) Close() error {
	var errs []error
	if err := b.Flush(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if b.closeVec {
		if err := b.vec.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.closeKV {
		if err := b.kv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *backend) Insert(ctx context.Context, m *mnemo.Memory) error {
	if m.ID == "" {
		return mnemo.Newf(mnemo.KindStorage, "insert: id is required")
	}
	if _, err := b.kv.Get(ctx, idKey(m.ID)); err == nil {
		return mnemo.Newf(mnemo.KindStorage, "insert: id %q already exists", m.ID)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return mnemo.Wrap(mnemo.KindStorage, "insert: check existing id", err)
	}

	m.ClampWeight()
	data, err := msgpack.Marshal(m)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "insert: encode", err)
	}

	createdAtUs := m.CreatedAt.Time().UnixMicro()
	if err := b.kv.Set(ctx, rowKey(m.Tier, createdAtUs, m.ID), data); err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "insert: write row", err)
	}
	if err := b.kv.Set(ctx, idKey(m.ID), idValue(m.Tier, createdAtUs)); err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "insert: write reverse index", err)
	}
	if len(m.Embedding) > 0 {
		if err := b.vec.Insert(m.ID, m.Embedding); err != nil {
			return mnemo.Wrap(mnemo.KindStorage, "insert: vector index", err)
		}
	}
	return nil
}

// InsertBatch writes every memory in one atomic kv batch: a collision
// or encoding failure on any row means none of them land.
func (b *backend) InsertBatch(ctx context.Context, ms []*mnemo.Memory) error {
	entries := make([]kv.Entry, 0, 2*len(ms))
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m.ID == "" {
			return mnemo.Newf(mnemo.KindStorage, "insert_batch: id is required")
		}
		if seen[m.ID] {
			return mnemo.Newf(mnemo.KindStorage, "insert_batch: id %q repeated in batch", m.ID)
		}
		seen[m.ID] = true
		if _, err := b.kv.Get(ctx, idKey(m.ID)); err == nil {
			return mnemo.Newf(mnemo.KindStorage, "insert_batch: id %q already exists", m.ID)
		} else if !errors.Is(err, kv.ErrNotFound) {
			return mnemo.Wrap(mnemo.KindStorage, "insert_batch: check existing id", err)
		}

		m.ClampWeight()
		data, err := msgpack.Marshal(m)
		if err != nil {
			return mnemo.Wrap(mnemo.KindStorage, "insert_batch: encode", err)
		}
		createdAtUs := m.CreatedAt.Time().UnixMicro()
		entries = append(entries,
			kv.Entry{Key: rowKey(m.Tier, createdAtUs, m.ID), Value: data},
			kv.Entry{Key: idKey(m.ID), Value: idValue(m.Tier, createdAtUs)},
		)
	}
	if err := b.kv.BatchSet(ctx, entries); err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "insert_batch: write", err)
	}
	for _, m := range ms {
		if len(m.Embedding) == 0 {
			continue
		}
		if err := b.vec.Insert(m.ID, m.Embedding); err != nil {
			return mnemo.Wrap(mnemo.KindStorage, "insert_batch: vector index", err)
		}
	}
	return nil
}

// locate resolves id to its current tier/created_at via the reverse
// index, then loads and decodes the row.
func (b *backend) locate(ctx context.Context, id string) (kv.Key, *mnemo.Memory, error) {
	idxVal, err := b.kv.Get(ctx, idKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil, mnemo.ErrNotFound
		}
		return nil, nil, mnemo.Wrap(mnemo.KindStorage, "locate: read reverse index", err)
	}
	tier, createdAtUs, ok := parseIDValue(idxVal)
	if !ok {
		return nil, nil, mnemo.Newf(mnemo.KindStorage, "locate: malformed reverse index for %q", id)
	}
	key := rowKey(tier, createdAtUs, id)
	raw, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil, mnemo.ErrNotFound
		}
		return nil, nil, mnemo.Wrap(mnemo.KindStorage, "locate: read row", err)
	}
	var m mnemo.Memory
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, nil, mnemo.Wrap(mnemo.KindStorage, "locate: decode row", err)
	}
	return key, &m, nil
}

func (b *backend) Get(ctx context.Context, id string) (*mnemo.Memory, error) {
	_, m, err := b.locate(ctx, id)
	return m, err
}

func (b *backend) Delete(ctx context.Context, id string) (bool, error) {
	key, m, err := b.locate(ctx, id)
	if err != nil {
		if errors.Is(err, mnemo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	// Row and reverse index go in one batch so a crash can't leave a
	// dangling index entry.
	if err := b.kv.BatchDelete(ctx, []kv.Key{key, idKey(id)}); err != nil {
		return false, mnemo.Wrap(mnemo.KindStorage, "delete", err)
	}
	if len(m.Embedding) > 0 {
		_ = b.vec.Delete(id)
	}
	return true, nil
}

func (b *backend) put(ctx context.Context, m *mnemo.Memory) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "update: encode", err)
	}
	createdAtUs := m.CreatedAt.Time().UnixMicro()
	if err := b.kv.Set(ctx, rowKey(m.Tier, createdAtUs, m.ID), data); err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "update: write row", err)
	}
	return b.kv.Set(ctx, idKey(m.ID), idValue(m.Tier, createdAtUs))
}

func (b *backend) UpdateAccess(ctx context.Context, id string, now mnemo.Micro) error {
	key, m, err := b.locate(ctx, id)
	if err != nil {
		return err
	}
	m.AccessCount++
	m.LastAccessed = now
	data, err := msgpack.Marshal(m)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "update_access: encode", err)
	}
	return b.kv.Set(ctx, key, data)
}

func (b *backend) UpdateTier(ctx context.Context, id string, tier mnemo.Tier) error {
	oldKey, m, err := b.locate(ctx, id)
	if err != nil {
		return err
	}
	if m.Tier == tier {
		return nil
	}
	if err := b.kv.Delete(ctx, oldKey); err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "update_tier: delete old row", err)
	}
	m.Tier = tier
	return b.put(ctx, m)
}

func (b *backend) UpdateCompression(ctx context.Context, id string, content string, c mnemo.Compression) error {
	key, m, err := b.locate(ctx, id)
	if err != nil {
		return err
	}
	if c.Rank() < m.Compression.Rank() {
		return mnemo.Newf(mnemo.KindStorage, "update_compression: %s is an upgrade from %s, compression only downgrades", c, m.Compression)
	}
	m.Content = content
	m.Compression = c
	data, err := msgpack.Marshal(m)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "update_compression: encode", err)
	}
	return b.kv.Set(ctx, key, data)
}

func (b *backend) scanAll(ctx context.Context) ([]mnemo.Memory, error) {
	var out []mnemo.Memory
	for entry, err := range b.kv.List(ctx, rowPrefix()) {
		if err != nil {
			return nil, mnemo.Wrap(mnemo.KindStorage, "scan", err)
		}
		var m mnemo.Memory
		if err := msgpack.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *backend) Search(ctx context.Context, embedding []float32, limit int) ([]mnemo.Memory, error) {
	return b.SearchFiltered(ctx, embedding, Filter{}, limit)
}

func (b *backend) SearchFiltered(ctx context.Context, embedding []float32, filter Filter, limit int) ([]mnemo.Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	if b.vec.Len() >= b.annMinRows && b.vec.Len() > 0 {
		return b.searchANN(ctx, embedding, filter, limit)
	}
	return b.searchBruteForce(ctx, embedding, filter, limit)
}

func (b *backend) searchANN(ctx context.Context, embedding []float32, filter Filter, limit int) ([]mnemo.Memory, error) {
	// Over-fetch candidates from the ANN index since the filter may
	// reject some; widen progressively if everything gets filtered out.
	topK := limit * 4
	if topK < 50 {
		topK = 50
	}
	matches, err := b.vec.Search(embedding, topK)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindStorage, "search: ann", err)
	}

	out := make([]mnemo.Memory, 0, limit)
	for _, match := range matches {
		m, err := b.Get(ctx, match.ID)
		if err != nil {
			if errors.Is(err, mnemo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !filter.matches(m) {
			continue
		}
		out = append(out, *m)
		if len(out) >= limit {
			break
		}
	}
	// matches is already ascending by distance.
	return out, nil
}

func (b *backend) searchBruteForce(ctx context.Context, embedding []float32, filter Filter, limit int) ([]mnemo.Memory, error) {
	all, err := b.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		m    mnemo.Memory
		dist float32
	}
	scoredList := make([]scored, 0, len(all))
	for _, m := range all {
		if !filter.matches(&m) {
			continue
		}
		if len(embedding) == 0 || len(m.Embedding) == 0 {
			scoredList = append(scoredList, scored{m: m, dist: 0})
			continue
		}
		scoredList = append(scoredList, scored{m: m, dist: vecstore.CosineDistance(embedding, m.Embedding)})
	}
	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].dist < scoredList[j].dist })

	if len(scoredList) > limit {
		scoredList = scoredList[:limit]
	}
	out := make([]mnemo.Memory, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.m
	}
	return out, nil
}

func (b *backend) ListByTier(ctx context.Context, tier mnemo.Tier) ([]mnemo.Memory, error) {
	var out []mnemo.Memory
	for entry, err := range b.kv.List(ctx, tierPrefix(tier)) {
		if err != nil {
			return nil, mnemo.Wrap(mnemo.KindStorage, "list_by_tier", err)
		}
		var m mnemo.Memory
		if err := msgpack.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *backend) CountByTier(ctx context.Context, tier mnemo.Tier) (int, error) {
	n := 0
	for _, err := range b.kv.List(ctx, tierPrefix(tier)) {
		if err != nil {
			return 0, mnemo.Wrap(mnemo.KindStorage, "count_by_tier", err)
		}
		n++
	}
	return n, nil
}

func (b *backend) TotalCount(ctx context.Context) (int, error) {
	n := 0
	for _, err := range b.kv.List(ctx, rowPrefix()) {
		if err != nil {
			return 0, mnemo.Wrap(mnemo.KindStorage, "total_count", err)
		}
		n++
	}
	return n, nil
}

func (b *backend) InsertTombstone(ctx context.Context, t *mnemo.Tombstone) error {
	data, err := msgpack.Marshal(t)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "insert_tombstone: encode", err)
	}
	return b.kv.Set(ctx, tombKey(t.OriginalID), data)
}

func (b *backend) GetTombstone(ctx context.Context, originalID string) (*mnemo.Tombstone, error) {
	raw, err := b.kv.Get(ctx, tombKey(originalID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, mnemo.ErrNotFound
		}
		return nil, mnemo.Wrap(mnemo.KindStorage, "get_tombstone", err)
	}
	var t mnemo.Tombstone
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return nil, mnemo.Wrap(mnemo.KindStorage, "get_tombstone: decode", err)
	}
	return &t, nil
}

func (b *backend) ListAllTombstones(ctx context.Context) ([]mnemo.Tombstone, error) {
	var out []mnemo.Tombstone
	for entry, err := range b.kv.List(ctx, tombPrefix()) {
		if err != nil {
			return nil, mnemo.Wrap(mnemo.KindStorage, "list_all_tombstones", err)
		}
		var t mnemo.Tombstone
		if err := msgpack.Unmarshal(entry.Value, &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (b *backend) SearchTombstonesByTopic(ctx context.Context, substring string) ([]mnemo.Tombstone, error) {
	all, err := b.ListAllTombstones(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(substring)
	var out []mnemo.Tombstone
	for _, t := range all {
		for _, topic := range t.Topics {
			if strings.Contains(strings.ToLower(topic), needle) {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

var _ Store = (*backend)(nil)
