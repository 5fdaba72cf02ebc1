package docstore

// Documents are schemaless JSON objects; the store only interprets the small
// envelope it maintains itself: id, url, version, properties timestamps, and
// the per-node stamps on members of the top-level "nodes" array.

func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docVersion(doc map[string]any) int {
	switch v := doc["version"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func docProperty(doc map[string]any, key string) string {
	props, _ := doc["properties"].(map[string]any)
	s, _ := props[key].(string)
	return s
}

// ensureProperties returns the document's properties object, creating it when
// absent so update stamps always have somewhere to land.
func ensureProperties(doc map[string]any) map[string]any {
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		doc["properties"] = props
	}
	return props
}

func docNodes(doc map[string]any) []any {
	arr, _ := doc["nodes"].([]any)
	return arr
}

func idOfNode(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["id"].(string)
	return s
}

// stampNode raises a node to version and records who touched it when. Edge
// connectors are versioned along with the node so downstream consumers can
// tell which mutation produced a link.
func stampNode(node any, version int, now int64, userID string) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	m["version"] = version
	props, ok := m["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		m["properties"] = props
	}
	props["lastUpdate"] = now
	props["lastUpdatedBy"] = userID
	edges, _ := m["edges"].([]any)
	for _, e := range edges {
		edge, ok := e.(map[string]any)
		if !ok {
			continue
		}
		connectors, _ := edge["connectors"].([]any)
		for _, c := range connectors {
			if conn, ok := c.(map[string]any); ok {
				conn["version"] = version
			}
		}
	}
}

// changedNodeIndices collects the distinct top-level "nodes" indices a change
// list touches, in first-seen order.
func changedNodeIndices(changes []Change) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, c := range changes {
		if len(c.Path) < 2 {
			continue
		}
		root, ok := c.Path[0].(string)
		if !ok || root != "nodes" {
			continue
		}
		idx, ok := pathIndex(c.Path[1])
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}
