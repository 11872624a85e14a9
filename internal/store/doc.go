// Package store keeps the latest status table and camera frame and fans
// updates out to live subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Status], [Frame]: Storage representations of the two loops' output
//   - [Event]: What subscribers receive
//
// Subscribers receive events via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the polling loops). The
// subscriber count can be watched; the relay uses it as the dashboard's
// visibility signal.
package store
