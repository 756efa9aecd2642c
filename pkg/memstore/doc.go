// Package memstore is the append-only, filterable, ANN-searchable column
// store over Memories and a parallel store of Tombstones.
//
// Like [github.com/mnemohq/mnemo/pkg/kv] and
// [github.com/mnemohq/mnemo/pkg/vecstore], it is a generic interface
// with pluggable backends: [NewMemory] for tests, [NewBadger] (kv
// rows + a vecstore index persisted through pkg/storage) for
// production. The vector database implementation itself is treated as
// an out-of-scope collaborator; swapping vecstore's brute-force index
// for HNSW, or for a client talking to Milvus or Qdrant, changes
// nothing above this package.
package memstore
