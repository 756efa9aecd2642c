// Package router extracts entities, topics, sentiment, and search-type
// hints from raw text ahead of embedding.
//
// Concrete NER and sentiment models live behind external collaborators;
// Router stands in for them with a lexicon-scanning heuristic: an
// Aho-Corasick automaton over configurable
// Person/Organization/Location/sentiment word lists.
package router
