// Package provider detects which LLM API a proxied request targets and
// offers a small capability set (ExtractUserQuery, InjectMemories,
// ParseResponseContent, ParseSSEContent) for operating on the raw JSON
// body rather than a typed request struct.
//
// Bodies are read with tidwall/gjson and rewritten with tidwall/sjson
// instead of unmarshaling into typed request structs: a proxy that
// must pass through fields it does not model cannot afford a lossy
// decode/encode round-trip.
package provider
