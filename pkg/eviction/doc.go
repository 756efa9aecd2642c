// Package eviction deletes the lowest-priority unprotected Memories in
// a tier once capacity pressure crosses a threshold, leaving a
// Tombstone behind for each deletion.
//
// Priority reuses pkg/retrieval's CalculateEffectiveWeight plus a
// recency bonus, so ranking and eviction never disagree about what a
// memory is worth.
package eviction
