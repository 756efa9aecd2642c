package memstore

import (
	"github.com/mnemohq/mnemo/pkg/kv"
	"github.com/mnemohq/mnemo/pkg/vecstore"
)

// NewMemory returns an in-memory Store backed by kv.Memory and a
// brute-force vecstore.Memory index. Intended for tests and small
// deployments.
func NewMemory() Store {
	b := newBackend(kv.NewMemory(nil), vecstore.NewMemory(), 0)
	b.closeKV = true
	b.closeVec = true
	return b
}
