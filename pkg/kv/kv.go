// Package kv is the keyspace layer under the memory store: every
// Memory row, Tombstone row, and secondary index the store maintains
// is a key-value pair here. Keys are hierarchical string paths
// (e.g. ["mem", "row", "hot", ...]) encoded with a separator byte, so
// tier listings and table scans become prefix iterations.
//
// Two backends implement the same contract: Badger for the on-disk
// data directory and Memory for tests.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path, one string per segment. Key{"mem", "id",
// "42"} encodes to "mem:id:42" with the default separator. Segments
// must not contain the separator byte; encoding panics if one does,
// since a separator inside a segment would silently corrupt prefix
// scans.
type Key []string

// String renders the key with ':' between segments, for display and
// debugging. Storage encoding goes through Options instead, which may
// use a different separator.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is one key-value pair, as yielded by List and accepted by
// BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the key-value contract both backends implement.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set writes key to value, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields every entry whose key has the given prefix, in
	// lexicographic order of the encoded key. An empty prefix yields
	// everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet writes all entries in one atomic batch.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes all keys in one atomic batch.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases the backend's resources.
	Close() error
}

// DefaultSeparator joins key segments when Options doesn't override it.
const DefaultSeparator byte = ':'

// Options configures key encoding.
type Options struct {
	// Separator joins segments in the encoded key. Zero means
	// DefaultSeparator.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins k's segments with the separator. Panics if a segment
// contains the separator byte.
func (o *Options) encode(k Key) []byte {
	s := o.sep()
	for _, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			panic(fmt.Sprintf("kv: key segment %q contains separator %q", seg, s))
		}
	}
	return []byte(strings.Join(k, string(s)))
}

// decode splits an encoded key back into its segments.
func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}
