// Package proxyserver is the transparent HTTP proxy: a chi router
// exposing /health and a dynamic /p/{rest...} passthrough, with memory
// injection ahead of the forwarded request and a streaming tee behind
// it that feeds the response back into ingestion.
//
// The memory path never blocks a client: injection failures forward
// the original body, and ingestion runs after the client has the full
// response.
package proxyserver
