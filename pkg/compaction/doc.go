// Package compaction downgrades Memory.Content/Compression under
// weight and age pressure.
//
// Stopword-filtered keyword extraction reuses the same
// orsinium-labs/stopwords table the router package scans with.
package compaction
