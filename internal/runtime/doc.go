// Package runtime assembles the single-node instance: the Pebble-backed
// blob store, the websocket session hub, the broadcast registry, and the
// document store, all sharing one metrics bundle and logger.
package runtime
