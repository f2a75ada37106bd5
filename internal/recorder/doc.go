// Package recorder turns stream trade events into durable trade
// rows. It enriches each trade with cached market metadata, derives
// the deterministic trade ID, and writes batches to the sink on a
// size or time trigger. The buffer has a hard cap: when full, the
// recorder stops consuming until a flush drains it, pushing
// backpressure up the stream rather than dropping trades.
package recorder
