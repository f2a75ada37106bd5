// Package gamma implements the client for Polymarket's Gamma metadata
// API. The market channel stream carries no human-readable context, so
// everything about a market (question, outcome labels, token IDs,
// closure state) comes from here.
//
// The API enforces a hard 500-markets-per-request ceiling and rate
// limits aggressively; the client spaces requests by a minimum delay
// and backs off on 429/5xx responses. Callers get a blocking,
// paginated fetch and nothing else.
package gamma
