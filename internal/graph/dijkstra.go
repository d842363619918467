package graph

import "container/heap"

// SearchOptions constrain a shortest-path search.
type SearchOptions struct {
	// Avoid lists systems excluded from the search entirely.
	Avoid map[int32]bool
	// Ship is the hull class the route must carry.
	Ship ShipSize
	// PreferSafe adds UnsafePenalty to edges whose destination security is
	// below HighsecThreshold, biasing the search toward highsec space.
	PreferSafe       bool
	HighsecThreshold float64
	UnsafePenalty    int
}

// PathStep is one node on a found path together with the edge used to arrive
// there. Via is nil on the first step.
type PathStep struct {
	Node *SystemNode
	Via  *SystemEdge
}

type pqItem struct {
	systemID int32
	dist     int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

type cameFrom struct {
	from int32
	edge *SystemEdge
}

// ShortestPath runs Dijkstra over the merged graph and returns the ordered
// steps from start to end inclusive. Returns nil when no path exists, and a
// single trivial step when start == end.
func ShortestPath(nodes map[int32]*SystemNode, start, end int32, opt SearchOptions) []PathStep {
	startNode, ok := nodes[start]
	if !ok || opt.Avoid[start] || !opt.Ship.CanPass(startNode.MaxShipSize) {
		return nil
	}
	if start == end {
		return []PathStep{{Node: startNode}}
	}
	endNode, ok := nodes[end]
	if !ok || opt.Avoid[end] || !opt.Ship.CanPass(endNode.MaxShipSize) {
		return nil
	}

	dist := make(map[int32]int)
	dist[start] = 0
	prev := make(map[int32]cameFrom)

	pq := &priorityQueue{{systemID: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if item.systemID == end {
			return assemblePath(nodes, prev, start, end)
		}
		if d, ok := dist[item.systemID]; ok && item.dist > d {
			continue
		}
		node := nodes[item.systemID]
		if node == nil {
			continue
		}
		for i := range node.Edges {
			edge := &node.Edges[i]
			if opt.Avoid[edge.To] {
				continue
			}
			neighbor, ok := nodes[edge.To]
			if !ok {
				continue
			}
			if !opt.Ship.CanPass(edge.MaxShipSize) || !opt.Ship.CanPass(neighbor.MaxShipSize) {
				continue
			}
			weight := 1
			if opt.PreferSafe && edge.ToSecurity < opt.HighsecThreshold {
				weight += opt.UnsafePenalty
			}
			nd := item.dist + weight
			if d, ok := dist[edge.To]; !ok || nd < d {
				dist[edge.To] = nd
				prev[edge.To] = cameFrom{from: item.systemID, edge: edge}
				heap.Push(pq, pqItem{systemID: edge.To, dist: nd})
			}
		}
	}
	return nil
}

func assemblePath(nodes map[int32]*SystemNode, prev map[int32]cameFrom, start, end int32) []PathStep {
	var reversed []PathStep
	cur := end
	for cur != start {
		step, ok := prev[cur]
		if !ok {
			return nil
		}
		reversed = append(reversed, PathStep{Node: nodes[cur], Via: step.edge})
		cur = step.from
	}
	reversed = append(reversed, PathStep{Node: nodes[start]})

	steps := make([]PathStep, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		steps = append(steps, reversed[i])
	}
	return steps
}
