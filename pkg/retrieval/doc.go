// Package retrieval implements the two-stage candidate-then-rerank
// pipeline: embed the query, fetch ANN candidates from storage, rerank
// by similarity and effective weight, optionally apply a deterministic
// quantized ordering, and update access stats on the memories
// returned.
package retrieval
