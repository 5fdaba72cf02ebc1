// Package httpserver exposes the editing backend over HTTP: a JSON REST
// surface for projections, events, publishing, and the table of contents, a
// prometheus metrics endpoint, and the websocket action loop clients use for
// live collaboration.
package httpserver
