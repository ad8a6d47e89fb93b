// Package devicekeys persists the signing keypairs of registered daemons.
//
// The table is keyed by device id and carries a UNIQUE user id, so the store
// holds at most one keypair per device and one per user. Upsert evicts any
// row that shares either id with the new keypair before inserting it.
//
// Key Types
//
//   - type Repository       : interface used by the credential store
//   - type SQLiteRepository : SQLite implementation over dbx.DBTX
package devicekeys
