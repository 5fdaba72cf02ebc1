package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "connections/123456/localhost", Connection("123456", "localhost"))
	assert.Equal(t, "subscriptions/blah/123456/localhost", Subscription("blah", "123456", "localhost"))
	assert.Equal(t, "subscriptions-reverse/123456/blah/localhost", SubscriptionReverse("123456", "blah", "localhost"))
	assert.Equal(t, "graphs/projections/latest/g1.json", LatestProjection("g1"))
	assert.Equal(t, "graphs/g1/projections/g1.4.json", VersionedProjection("g1", 4))
	assert.Equal(t, "graphs/g1/events/e1.json", Event("g1", "e1"))
	assert.Equal(t, "graphs/projections/endpoints/my-graph.json", Endpoint("my-graph"))
	assert.Equal(t, "graphs/projections/published/artifacts/n1.2.json", PublishedArtifact("n1", 2))
	assert.Equal(t, "graphs/projections/published/endpoints/my-graph.json", PublishedEndpoint("my-graph"))
}

func TestRoundTripParsers(t *testing.T) {
	ref, ok := ParseSubscription(Subscription("blah", "123456", "localhost"))
	require.True(t, ok)
	assert.Equal(t, SubscriptionRef{ChannelID: "blah", ConnectionID: "123456", DomainName: "localhost"}, ref)

	ref, ok = ParseSubscriptionReverse(SubscriptionReverse("123456", "blah", "localhost"))
	require.True(t, ok)
	assert.Equal(t, SubscriptionRef{ChannelID: "blah", ConnectionID: "123456", DomainName: "localhost"}, ref)

	cref, ok := ParseConnection(Connection("123456", "localhost"))
	require.True(t, ok)
	assert.Equal(t, ConnectionRef{ConnectionID: "123456", DomainName: "localhost"}, cref)

	_, ok = ParseSubscription("graphs/projections/toc.json")
	assert.False(t, ok)
}

func TestEndpointDetection(t *testing.T) {
	assert.True(t, IsEndpointProjection(Endpoint("my-graph")))
	assert.False(t, IsEndpointProjection(LatestProjection("g1")))
}
