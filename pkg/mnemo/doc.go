// Package mnemo holds the types, configuration, and error taxonomy shared
// across every component of the memory engine: the data model (Memory,
// Tombstone, RetrievedMemory, RouterOutput), the microsecond-precision
// timestamp type used on the wire and in storage, and the Config loaded
// from the process environment.
package mnemo
