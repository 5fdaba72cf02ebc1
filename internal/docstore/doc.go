// Package docstore implements the event-sourced document store: clients
// submit change lists against a checksum-identified base state, and each
// accepted mutation produces a new latest projection, an immutable versioned
// snapshot, stored edit and derived version events, an endpoint alias, and a
// debounced table-of-contents rebuild. Accepted mutations and index updates
// are announced through the broadcast registry.
package docstore
