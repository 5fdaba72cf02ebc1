// Package config loads graph-server configuration from a JSON file with
// GRAPH_SERVER_* environment overrides, and resolves the default data
// directory per host OS.
package config
