// Package journal persists what the dongle learns: which devices were
// commissioned onto which network, and every batch of wattage samples
// drained from them. Storage is a single append-only file of JSON lines,
// replayed into an in-memory index on open.
package journal
