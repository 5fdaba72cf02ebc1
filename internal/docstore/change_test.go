package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApply(t *testing.T, doc map[string]any, changes ...Change) map[string]any {
	t.Helper()
	var err error
	for _, c := range changes {
		doc, err = Apply(doc, c)
		require.NoError(t, err)
	}
	return doc
}

func TestApplyNewCreatesIntermediateContainers(t *testing.T) {
	doc := mustApply(t, map[string]any{},
		Change{Kind: KindNew, Path: []any{"properties", "name"}, RHS: "demo"},
		Change{Kind: KindNew, Path: []any{"nodes", 0, "id"}, RHS: "n-1"},
	)
	assert.Equal(t, "demo", docProperty(doc, "name"))
	nodes := docNodes(doc)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n-1", idOfNode(nodes[0]))
}

func TestApplyEditAndDelete(t *testing.T) {
	doc := map[string]any{"url": "a", "stale": true}
	doc = mustApply(t, doc,
		Change{Kind: KindEdit, Path: []any{"url"}, LHS: "a", RHS: "b"},
		Change{Kind: KindDelete, Path: []any{"stale"}, LHS: true},
	)
	assert.Equal(t, "b", docString(doc, "url"))
	_, present := doc["stale"]
	assert.False(t, present)
}

func TestApplyArrayItemChanges(t *testing.T) {
	doc := map[string]any{"nodes": []any{"a", "b"}}
	doc = mustApply(t, doc,
		Change{Kind: KindArray, Path: []any{"nodes"}, Index: 2, Item: &Change{Kind: KindNew, RHS: "c"}},
	)
	assert.Equal(t, []any{"a", "b", "c"}, docNodes(doc))

	doc = mustApply(t, doc,
		Change{Kind: KindArray, Path: []any{"nodes"}, Index: 1, Item: &Change{Kind: KindDelete, LHS: "b"}},
	)
	assert.Equal(t, []any{"a", "c"}, docNodes(doc))
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	_, err := Apply(map[string]any{}, Change{Kind: "X", Path: []any{"a"}})
	assert.Error(t, err)
}

func TestApplyPathTypeMismatch(t *testing.T) {
	_, err := Apply(map[string]any{"url": "a"}, Change{Kind: KindNew, Path: []any{"url", "nested"}, RHS: 1})
	assert.Error(t, err)
}

// Diff then Apply must round-trip: applying the produced changes to lhs
// yields rhs.
func TestDiffApplyRoundTrip(t *testing.T) {
	cases := []struct{ lhs, rhs string }{
		{`{}`, `{"id":"g1","nodes":[{"id":"n1"}]}`},
		{`{"a":1,"b":"x"}`, `{"a":2,"c":true}`},
		{`{"nodes":["a","b","c"]}`, `{"nodes":["a"]}`},
		{`{"nodes":["a"]}`, `{"nodes":["a","b","c"]}`},
		{`{"deep":{"list":[{"v":1},{"v":2}]}}`, `{"deep":{"list":[{"v":1},{"v":3},{"v":4}]}}`},
		{`{"gone":{"x":1}}`, `{}`},
	}
	for _, tc := range cases {
		var lhs, rhs map[string]any
		require.NoError(t, json.Unmarshal([]byte(tc.lhs), &lhs))
		require.NoError(t, json.Unmarshal([]byte(tc.rhs), &rhs))

		got := mustApply(t, lhs, Diff(lhs, rhs)...)
		assert.Equal(t, rhs, got, "lhs=%s rhs=%s", tc.lhs, tc.rhs)
	}
}

func TestDiffEqualDocumentsIsEmpty(t *testing.T) {
	doc := map[string]any{"id": "g1", "nodes": []any{map[string]any{"id": "n1"}}}
	assert.Empty(t, Diff(doc, doc))
}

func TestChecksumIsStructural(t *testing.T) {
	var a, b map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"x":1,"y":2}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"y":2,"x":1}`), &b))
	ca, err := Checksum(a)
	require.NoError(t, err)
	cb, err := Checksum(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)

	b["x"] = 3
	cc, err := Checksum(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca, cc)
}
