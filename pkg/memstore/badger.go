package memstore

import (
	"context"
	"path/filepath"

	"github.com/mnemohq/mnemo/pkg/kv"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/storage"
	"github.com/mnemohq/mnemo/pkg/vecstore"
)

// BadgerConfig configures the production Store backend.
type BadgerConfig struct {
	// DataDir holds Badger's column-table files and, under
	// DataDir/index/, the persisted HNSW graph. Required.
	DataDir string

	// Dimension is the embedding width the HNSW index is built for.
	Dimension int

	// ANNMinRows is the row count past which search consults the ANN
	// index instead of a brute-force scan. Default 1000.
	ANNMinRows int
}

const hnswIndexFile = "memories.hnsw"

// NewBadger opens (or creates) a production Store rooted at
// cfg.DataDir: a Badger-backed column store for Memories/Tombstones and
// an HNSW vector index, restored from disk if a prior run persisted one.
func NewBadger(cfg BadgerConfig) (Store, error) {
	if cfg.DataDir == "" {
		return nil, mnemo.Newf(mnemo.KindConfig, "memstore: DataDir is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = mnemo.Dimension
	}
	annMinRows := cfg.ANNMinRows
	if annMinRows <= 0 {
		annMinRows = 1000
	}

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "kv")})
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindStorage, "memstore: open badger", err)
	}

	fs, err := storage.NewLocal(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		store.Close()
		return nil, mnemo.Wrap(mnemo.KindStorage, "memstore: open index dir", err)
	}

	vec, loaded, err := loadOrCreateHNSW(fs, cfg.Dimension)
	if err != nil {
		store.Close()
		return nil, err
	}

	b := newBackend(store, vec, annMinRows)
	b.closeKV = true
	b.closeVec = true
	b.index = fs

	// No persisted graph (first run, or the process died before Close):
	// rebuild it from the rows already in the column store, so search
	// never consults an index that is missing vectors the store has.
	if !loaded {
		if err := b.rebuildIndex(context.Background()); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *backend) rebuildIndex(ctx context.Context) error {
	rows, err := b.scanAll(ctx)
	if err != nil {
		return err
	}
	for _, m := range rows {
		if len(m.Embedding) == 0 {
			continue
		}
		if err := b.vec.Insert(m.ID, m.Embedding); err != nil {
			return mnemo.Wrap(mnemo.KindStorage, "memstore: rebuild index", err)
		}
	}
	return nil
}

func loadOrCreateHNSW(fs storage.FileStore, dim int) (vecstore.Index, bool, error) {
	ctx := context.Background()
	exists, err := fs.Exists(ctx, hnswIndexFile)
	if err != nil {
		return nil, false, mnemo.Wrap(mnemo.KindStorage, "memstore: stat index file", err)
	}
	if exists {
		r, err := fs.Read(ctx, hnswIndexFile)
		if err != nil {
			return nil, false, mnemo.Wrap(mnemo.KindStorage, "memstore: read index file", err)
		}
		defer r.Close()
		idx, err := vecstore.LoadHNSW(r)
		if err != nil {
			return nil, false, mnemo.Wrap(mnemo.KindStorage, "memstore: decode index file", err)
		}
		return idx, true, nil
	}
	return vecstore.NewHNSW(vecstore.HNSWConfig{Dim: dim}), false, nil
}

// Flush persists the vector index to its backing FileStore, if the
// backend was opened with one. Close calls it automatically; a process
// killed before Close rebuilds the index from the column store's rows
// next start (the column store itself is always durable).
func (b *backend) Flush(ctx context.Context) error {
	if b.index == nil {
		return nil
	}
	hnsw, ok := b.vec.(*vecstore.HNSW)
	if !ok {
		return nil
	}
	w, err := b.index.Write(ctx, hnswIndexFile)
	if err != nil {
		return mnemo.Wrap(mnemo.KindStorage, "memstore: open index file for write", err)
	}
	defer w.Close()
	return hnsw.Save(w)
}
