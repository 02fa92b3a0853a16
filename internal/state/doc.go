// Package state holds the current state of every published entity.
//
// A Store keeps the states in memory and writes a full snapshot through a
// Snapshotter after each change. Memory is authoritative: a snapshot that
// cannot be read at startup yields an empty store, and a snapshot that
// cannot be written is logged while the in-memory update stands.
//
// Backends:
//   - FileSnapshotter: JSON document {"entity_states": {...}}, replaced atomically
//   - SQLiteSnapshotter: entity_states table, one row per entity
//
// Writes are expected from a single goroutine (the polling job). Reads may
// come from any goroutine.
package state
