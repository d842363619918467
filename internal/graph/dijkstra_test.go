package graph

import "testing"

// line builds a chain of systems 1-2-...-n with bidirectional capital-sized gates.
func line(sec float64, ids ...int32) map[int32]*SystemNode {
	nodes := make(map[int32]*SystemNode)
	for _, id := range ids {
		nodes[id] = node(id, "", sec)
	}
	for i := 0; i+1 < len(ids); i++ {
		a, b := ids[i], ids[i+1]
		nodes[a].Edges = append(nodes[a].Edges, gate(b, sec))
		nodes[b].Edges = append(nodes[b].Edges, gate(a, sec))
	}
	return nodes
}

func defaultOpts() SearchOptions {
	return SearchOptions{Ship: Frigate, HighsecThreshold: 0.45, UnsafePenalty: 100}
}

func pathIDs(steps []PathStep) []int32 {
	ids := make([]int32, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.Node.ID)
	}
	return ids
}

func TestShortestPath_SimpleChain(t *testing.T) {
	nodes := line(0.9, 1, 2, 3, 4)
	steps := ShortestPath(nodes, 1, 4, defaultOpts())
	if len(steps) != 4 {
		t.Fatalf("steps len = %d, want 4", len(steps))
	}
	want := []int32{1, 2, 3, 4}
	for i, id := range pathIDs(steps) {
		if id != want[i] {
			t.Errorf("step %d = %d, want %d", i, id, want[i])
		}
	}
	if steps[0].Via != nil {
		t.Error("first step should have nil Via")
	}
	if steps[1].Via == nil || steps[1].Via.To != 2 {
		t.Error("second step should arrive via edge into system 2")
	}
}

func TestShortestPath_StartEqualsEnd(t *testing.T) {
	nodes := line(0.9, 1, 2)
	steps := ShortestPath(nodes, 1, 1, defaultOpts())
	if len(steps) != 1 {
		t.Fatalf("steps len = %d, want 1 (trivial route)", len(steps))
	}
	if steps[0].Node.ID != 1 || steps[0].Via != nil {
		t.Error("trivial route should be the start system with no arrival edge")
	}
}

func TestShortestPath_NoPath(t *testing.T) {
	nodes := line(0.9, 1, 2)
	nodes[3] = node(3, "", 0.9)
	steps := ShortestPath(nodes, 1, 3, defaultOpts())
	if steps != nil {
		t.Errorf("steps = %v, want nil for unreachable destination", pathIDs(steps))
	}
}

func TestShortestPath_AvoidList(t *testing.T) {
	// 1-2-4 and 1-3-4: avoiding 2 must force the route through 3.
	nodes := line(0.9, 1, 2, 4)
	nodes[3] = node(3, "", 0.9, gate(1, 0.9), gate(4, 0.9))
	nodes[1].Edges = append(nodes[1].Edges, gate(3, 0.9))
	nodes[4].Edges = append(nodes[4].Edges, gate(3, 0.9))

	opts := defaultOpts()
	opts.Avoid = map[int32]bool{2: true}
	steps := ShortestPath(nodes, 1, 4, opts)
	want := []int32{1, 3, 4}
	got := pathIDs(steps)
	if len(got) != len(want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("path = %v, want %v", got, want)
		}
	}
}

func TestShortestPath_AvoidedEndpointFails(t *testing.T) {
	nodes := line(0.9, 1, 2)
	opts := defaultOpts()
	opts.Avoid = map[int32]bool{2: true}
	if steps := ShortestPath(nodes, 1, 2, opts); steps != nil {
		t.Errorf("steps = %v, want nil when destination avoided", pathIDs(steps))
	}
}

func TestShortestPath_ShipSizeBlocksEdge(t *testing.T) {
	// Frigate-sized hole between 1 and 2.
	nodes := map[int32]*SystemNode{
		1: node(1, "", 0.9, SystemEdge{To: 2, ToSecurity: 0.9, MaxShipSize: Frigate, Source: SourceTrigMap}),
		2: node(2, "", 0.9),
	}
	opts := defaultOpts()
	opts.Ship = Capital
	if steps := ShortestPath(nodes, 1, 2, opts); steps != nil {
		t.Error("capital should not pass a frigate-sized edge")
	}

	opts.Ship = Frigate
	if steps := ShortestPath(nodes, 1, 2, opts); len(steps) != 2 {
		t.Errorf("frigate should pass a frigate-sized edge, got %v", pathIDs(steps))
	}
}

func TestShortestPath_ShipSizeBlocksNode(t *testing.T) {
	nodes := line(0.9, 1, 2, 3)
	nodes[2].MaxShipSize = Frigate

	opts := defaultOpts()
	opts.Ship = Battleship
	if steps := ShortestPath(nodes, 1, 3, opts); steps != nil {
		t.Error("battleship should not route through a frigate-ceiling system")
	}
}

func TestShipSize_MassOrdering(t *testing.T) {
	order := []ShipSize{Frigate, Cruiser, Battleship, Freighter, Capital}
	for i := 0; i+1 < len(order); i++ {
		if order[i].Mass() >= order[i+1].Mass() {
			t.Errorf("%v mass %v not below %v mass %v", order[i], order[i].Mass(), order[i+1], order[i+1].Mass())
		}
	}
	if !Frigate.CanPass(Frigate) {
		t.Error("frigate should pass a frigate-sized ceiling")
	}
	if Capital.CanPass(Frigate) {
		t.Error("capital should not pass a frigate-sized ceiling")
	}
}

func TestShortestPath_PreferSafeTakesLongerHighsecRoute(t *testing.T) {
	// Direct lowsec hop 1->4 versus highsec detour 1->2->3->4.
	nodes := map[int32]*SystemNode{
		1: node(1, "", 0.9, gate(4, 0.2), gate(2, 0.9)),
		2: node(2, "", 0.9, gate(3, 0.9)),
		3: node(3, "", 0.9, gate(4, 0.9)),
		4: node(4, "", 0.9),
	}
	// preferSafe off: the single lowsec hop wins.
	steps := ShortestPath(nodes, 1, 4, defaultOpts())
	if len(steps) != 2 {
		t.Fatalf("preferSafe=false path = %v, want direct hop", pathIDs(steps))
	}

	opts := defaultOpts()
	opts.PreferSafe = true
	steps = ShortestPath(nodes, 1, 4, opts)
	want := []int32{1, 2, 3, 4}
	got := pathIDs(steps)
	if len(got) != len(want) {
		t.Fatalf("preferSafe=true path = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("preferSafe=true path = %v, want %v", got, want)
		}
	}
}

func TestShortestPath_PreferSafeStillRoutesThroughLowsecWhenOnlyOption(t *testing.T) {
	nodes := line(0.2, 1, 2, 3)
	opts := defaultOpts()
	opts.PreferSafe = true
	steps := ShortestPath(nodes, 1, 3, opts)
	if len(steps) != 3 {
		t.Errorf("path = %v, want lowsec route when no highsec alternative exists", pathIDs(steps))
	}
}
