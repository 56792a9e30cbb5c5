// Package store groups the checkpoint.Store backends.
//
// Available backends:
//
//   - store/memory — in-memory map, for unit testing and development
//   - store/file — one file per workflow identity in a caller-supplied
//     directory, atomic replace via temp file + rename; the default
//     durable backend for single-operator CLI use
//   - store/redis — Redis hashes, for shared short-lived state
//   - store/postgres — PostgreSQL via pgx with embedded migrations
//   - store/bun — PostgreSQL via the bun ORM with embedded migrations
//
// All backends implement checkpoint.Store and share its semantics:
// atomic replace on Save, provisio.ErrCheckpointNotFound from Load,
// idempotent Clear.
package store
