// Package keys owns the blob key layout. Every key family has exactly one
// constructor and, where readers recover identity from keys, one parser, so
// writer and reader key shapes cannot drift.
package keys

import (
	"fmt"
	"strings"
)

// Key families:
//
//	connections/{connectionId}/{domainName}
//	subscriptions/{channelId}/{connectionId}/{domainName}
//	subscriptions-reverse/{connectionId}/{channelId}/{domainName}
//	graphs/projections/latest/{graphId}.json
//	graphs/{graphId}/events/{eventId}.json
//	graphs/{graphId}/projections/{graphId}.{version}.json
//	graphs/projections/endpoints/{url}.json
//	graphs/projections/published/artifacts/{id}.{version}.json
//	graphs/projections/published/endpoints/{url}.json
//	graphs/projections/toc.json
const (
	ConnectionsPrefix = "connections/"
	ProjectionsPrefix = "graphs/projections/"
	EndpointsPrefix   = "graphs/projections/endpoints/"
	Toc               = "graphs/projections/toc.json"
)

// Connection returns the record key for a live connection.
func Connection(connectionID, domainName string) string {
	return "connections/" + connectionID + "/" + domainName
}

// Subscription returns the forward (channel -> connection) record key.
func Subscription(channelID, connectionID, domainName string) string {
	return "subscriptions/" + channelID + "/" + connectionID + "/" + domainName
}

// SubscriptionReverse returns the reverse (connection -> channel) record key.
func SubscriptionReverse(connectionID, channelID, domainName string) string {
	return "subscriptions-reverse/" + connectionID + "/" + channelID + "/" + domainName
}

// SubscribersPrefix lists every forward subscription for a channel.
func SubscribersPrefix(channelID string) string {
	return "subscriptions/" + channelID + "/"
}

// SubscriptionsPrefix lists every reverse subscription for a connection.
func SubscriptionsPrefix(connectionID string) string {
	return "subscriptions-reverse/" + connectionID + "/"
}

// LatestProjection returns the mutable latest-projection key for a graph.
func LatestProjection(graphID string) string {
	return "graphs/projections/latest/" + graphID + ".json"
}

// VersionedProjection returns the immutable snapshot key for (graph, version).
func VersionedProjection(graphID string, version int) string {
	return fmt.Sprintf("graphs/%s/projections/%s.%d.json", graphID, graphID, version)
}

// GraphProjectionsPrefix covers every versioned projection of a graph.
func GraphProjectionsPrefix(graphID string) string {
	return "graphs/" + graphID + "/projections"
}

// Event returns the key for one stored event of a graph.
func Event(graphID, eventID string) string {
	return "graphs/" + graphID + "/events/" + eventID + ".json"
}

// EventsPrefix covers every event of a graph.
func EventsPrefix(graphID string) string {
	return "graphs/" + graphID + "/events/"
}

// Endpoint returns the human-alias projection key.
func Endpoint(url string) string {
	return "graphs/projections/endpoints/" + url + ".json"
}

// PublishedArtifact returns the frozen artifact key for (id, version).
func PublishedArtifact(id string, version int) string {
	return fmt.Sprintf("graphs/projections/published/artifacts/%s.%d.json", id, version)
}

// PublishedEndpoint returns the published alias key for a url.
func PublishedEndpoint(url string) string {
	return "graphs/projections/published/endpoints/" + url + ".json"
}

// SubscriptionRef identifies one subscription recovered from a key.
type SubscriptionRef struct {
	ChannelID    string `json:"channelId"`
	ConnectionID string `json:"connectionId"`
	DomainName   string `json:"domainName"`
}

// ParseSubscription recovers the subscription from a forward key.
func ParseSubscription(key string) (SubscriptionRef, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "subscriptions" {
		return SubscriptionRef{}, false
	}
	return SubscriptionRef{ChannelID: parts[1], ConnectionID: parts[2], DomainName: parts[3]}, true
}

// ParseSubscriptionReverse recovers the subscription from a reverse key.
func ParseSubscriptionReverse(key string) (SubscriptionRef, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "subscriptions-reverse" {
		return SubscriptionRef{}, false
	}
	return SubscriptionRef{ConnectionID: parts[1], ChannelID: parts[2], DomainName: parts[3]}, true
}

// ConnectionRef identifies one connection recovered from a key.
type ConnectionRef struct {
	ConnectionID string `json:"connectionId"`
	DomainName   string `json:"domainName"`
}

// ParseConnection recovers the connection from a connection record key.
func ParseConnection(key string) (ConnectionRef, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "connections" {
		return ConnectionRef{}, false
	}
	return ConnectionRef{ConnectionID: parts[1], DomainName: parts[2]}, true
}

// IsEndpointProjection reports whether the key addresses an endpoint alias.
func IsEndpointProjection(key string) bool {
	return strings.HasPrefix(key, EndpointsPrefix)
}
