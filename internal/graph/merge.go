package graph

// Merge combines any number of source graphs into one. When a system appears in
// several sources the first source's identity fields (name, security, ship-size
// ceiling) win, while edges from every source accumulate. Edges are not
// de-duplicated: two sources reporting the same directed pair yield two edges.
//
// Callers merge the static topology first so permanent map data takes identity
// precedence over transient wormhole sources. Inputs are never mutated.
func Merge(sources ...map[int32]*SystemNode) map[int32]*SystemNode {
	out := make(map[int32]*SystemNode)
	for _, src := range sources {
		for id, node := range src {
			existing, ok := out[id]
			if !ok {
				copied := &SystemNode{
					ID:          node.ID,
					Name:        node.Name,
					Security:    node.Security,
					MaxShipSize: node.MaxShipSize,
					Edges:       append([]SystemEdge(nil), node.Edges...),
				}
				out[id] = copied
				continue
			}
			existing.Edges = append(existing.Edges, node.Edges...)
		}
	}
	return out
}
