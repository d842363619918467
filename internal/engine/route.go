package engine

import (
	"fmt"

	"eve-metro/internal/config"
	"eve-metro/internal/db"
	"eve-metro/internal/evescout"
	"eve-metro/internal/graph"
	"eve-metro/internal/sde"
)

// ConnectionSource lists the community-reported connections.
type ConnectionSource interface {
	ListConnections() ([]db.Connection, error)
}

// ScoutSource fetches the current scouting-feed records.
type ScoutSource interface {
	Fetch() ([]evescout.RawSignature, error)
}

// Router computes constrained shortest routes over the merged graph of static
// stargates, scouting-feed wormholes, and community connections. A Router is
// stateless between requests; concurrent calculations are independent.
type Router struct {
	cfg    *config.Config
	static *sde.Data
	scout  ScoutSource
	store  ConnectionSource
}

// NewRouter creates a route calculator. scout may be nil when no feed is
// configured.
func NewRouter(cfg *config.Config, static *sde.Data, scout ScoutSource, store ConnectionSource) *Router {
	return &Router{cfg: cfg, static: static, scout: scout, store: store}
}

// RouteRequest describes one route calculation.
type RouteRequest struct {
	From                int32          `json:"from"`
	To                  int32          `json:"to"`
	Avoid               []int32        `json:"avoid"`
	Ship                graph.ShipSize `json:"ship"`
	PreferSafe          bool           `json:"prefer_safe"`
	AvoidExpiredReports bool           `json:"avoid_expired_reports"`
	UseScoutingFeed     bool           `json:"use_scouting_feed"`
}

// RouteHop is one system on the computed route. The signature, type, and
// criticality fields describe the connection used to leave this system; they
// are empty on the final hop.
type RouteHop struct {
	SystemID     int32            `json:"system_id"`
	Name         string           `json:"name"`
	Security     float64          `json:"security"`
	Signature    string           `json:"signature,omitempty"`
	WhType       string           `json:"wh_type,omitempty"`
	MassCritical bool             `json:"mass_critical,omitempty"`
	TimeCritical bool             `json:"time_critical,omitempty"`
	Source       graph.Provenance `json:"source,omitempty"`
}

// Calculate merges the source graphs and runs the constrained search. An
// unreachable destination yields an empty hop list, not an error; errors are
// reserved for source failures.
func (r *Router) Calculate(req RouteRequest) ([]RouteHop, error) {
	sources := []map[int32]*graph.SystemNode{r.static.NodeMap()}

	if req.UseScoutingFeed && r.scout != nil {
		sigs, err := r.scout.Fetch()
		if err != nil {
			return nil, fmt.Errorf("scouting feed: %w", err)
		}
		sources = append(sources, evescout.NodeMap(sigs, r.static))
	}

	conns, err := r.store.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("community connections: %w", err)
	}
	sources = append(sources, connectionNodes(conns, r.static, req.AvoidExpiredReports))

	merged := graph.Merge(sources...)

	avoid := make(map[int32]bool, len(req.Avoid))
	for _, id := range req.Avoid {
		avoid[id] = true
	}

	steps := graph.ShortestPath(merged, req.From, req.To, graph.SearchOptions{
		Avoid:            avoid,
		Ship:             req.Ship,
		PreferSafe:       req.PreferSafe,
		HighsecThreshold: r.cfg.HighsecThreshold,
		UnsafePenalty:    r.cfg.UnsafePenalty,
	})
	return hopsFromSteps(steps), nil
}

// hopsFromSteps flattens search steps into hops. Departure metadata on hop i
// comes from the edge that arrives at hop i+1.
func hopsFromSteps(steps []graph.PathStep) []RouteHop {
	hops := make([]RouteHop, 0, len(steps))
	for i, step := range steps {
		hop := RouteHop{
			SystemID: step.Node.ID,
			Name:     step.Node.Name,
			Security: step.Node.Security,
		}
		if i+1 < len(steps) {
			departing := steps[i+1].Via
			hop.Signature = departing.SignatureFrom
			hop.WhType = departing.TypeFrom
			hop.MassCritical = departing.MassCritical
			hop.TimeCritical = departing.TimeCritical
			hop.Source = departing.Source
		}
		hops = append(hops, hop)
	}
	return hops
}

// typeMaxSize holds ship-size ceilings for the wormhole classes seen on
// community connections. Unlisted classes pass battleships.
var typeMaxSize = map[string]graph.ShipSize{
	"C729": graph.Freighter,
	"R081": graph.Capital,
	"F216": graph.Battleship,
	"X450": graph.Battleship,
	"U372": graph.Battleship,
	"K162": graph.Battleship,
}

func connectionMaxSize(c *db.Connection) graph.ShipSize {
	if size, ok := typeMaxSize[c.TypeFrom]; ok && c.TypeFrom != "K162" {
		return size
	}
	if size, ok := typeMaxSize[c.TypeTo]; ok && c.TypeTo != "K162" {
		return size
	}
	return graph.Battleship
}

// connectionNodes maps community connections onto the route-graph model. Each
// connection yields a directed edge in both directions.
func connectionNodes(conns []db.Connection, static *sde.Data, avoidReported bool) map[int32]*graph.SystemNode {
	nodes := make(map[int32]*graph.SystemNode)
	for i := range conns {
		c := &conns[i]
		if avoidReported && len(c.ExpiryReports) > 0 {
			continue
		}
		size := connectionMaxSize(c)
		reported := len(c.ExpiryReports) > 0

		from := ensureNode(nodes, static, c.SystemFrom)
		to := ensureNode(nodes, static, c.SystemTo)

		from.Edges = append(from.Edges, graph.SystemEdge{
			To:             c.SystemTo,
			ToName:         to.Name,
			ToSecurity:     to.Security,
			MaxShipSize:    size,
			Source:         graph.SourceTrigMap,
			SignatureFrom:  c.SignatureFrom,
			SignatureTo:    c.SignatureTo,
			TypeFrom:       c.TypeFrom,
			TypeTo:         c.TypeTo,
			MassCritical:   c.MassCritical,
			TimeCritical:   c.TimeCritical,
			ExpiryReported: reported,
		})
		to.Edges = append(to.Edges, graph.SystemEdge{
			To:             c.SystemFrom,
			ToName:         from.Name,
			ToSecurity:     from.Security,
			MaxShipSize:    size,
			Source:         graph.SourceTrigMap,
			SignatureFrom:  c.SignatureTo,
			SignatureTo:    c.SignatureFrom,
			TypeFrom:       c.TypeTo,
			TypeTo:         c.TypeFrom,
			MassCritical:   c.MassCritical,
			TimeCritical:   c.TimeCritical,
			ExpiryReported: reported,
		})
	}
	return nodes
}

func ensureNode(nodes map[int32]*graph.SystemNode, static *sde.Data, id int32) *graph.SystemNode {
	if n, ok := nodes[id]; ok {
		return n
	}
	node := &graph.SystemNode{ID: id, MaxShipSize: graph.Capital}
	if static != nil {
		if sys, ok := static.Systems[id]; ok {
			node.Name = sys.Name
			node.Security = sys.Security
		}
	}
	nodes[id] = node
	return node
}
