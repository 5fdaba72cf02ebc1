// Package pebblestore wraps cockroachdb/pebble with the durability policy,
// metrics hooks, and prefix-scan helpers the blob store is built on.
//
// All graph-server state (connections, subscriptions, projections, events,
// the TOC) lives in one Pebble keyspace; ordering of keys matters because
// prefix listing stands in for the original deployment's object-store
// prefix queries.
package pebblestore
