// Package serverrun contains the server bootstrap: config and logger
// assembly, runtime open, and the HTTP server lifecycle under signal-aware
// shutdown.
package serverrun
