// Package tier implements Hot/Warm/Cold tier migration.
//
// Hot and Warm share one table distinguished only by the tier field;
// that distinction lives entirely in pkg/memstore's row layout, so this
// package only ever mutates the tier field through Store.UpdateTier.
package tier
