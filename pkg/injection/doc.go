// Package injection renders retrieved memories into the XML-ish tagged
// block that pkg/provider splices into a client's system prompt, under
// a token budget.
package injection
