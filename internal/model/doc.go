// Package model defines shared data types used across the tick recorder.
//
// Conventions:
//   - Prices and sizes: shopspring decimals (prices are 0.0-1.0)
//   - Timestamps: time.Time in UTC
//   - IDs: strings throughout; CLOB asset IDs are opaque big-integer
//     strings and must never be parsed into machine integers
package model
