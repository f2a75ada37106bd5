// Package store persists trade ticks and market metadata to
// PostgreSQL. Writes are idempotent: the trade_id primary key plus
// ON CONFLICT DO NOTHING makes replays and reconnect overlap safe,
// and conflicting rows are re-read to verify the stored payload
// matches what was about to be written.
package store
