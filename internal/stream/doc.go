// Package stream maintains the persistent WebSocket connection to the
// CLOB market channel.
//
// One Conn owns one connection and the set of asset IDs subscribed on
// it. On every (re)connect the entire tracked set is subscribed, never
// a diff, so a lost frame mid-flight can't silently shrink coverage.
// The connection moves through Disconnected → Connecting → Subscribed
// and back through Reconnecting on failure, with capped exponential
// backoff, until Shutdown.
//
// Raw messages are decoded at this boundary into a closed set of typed
// events; unrecognized shapes are counted and dropped, never fatal.
// Event delivery blocks when the consumer is behind: after a message
// has been read off the socket it is never discarded.
package stream
