package evescout

import (
	"fmt"
	"sync"
	"time"

	"eve-metro/internal/esi"
	"eve-metro/internal/graph"
	"eve-metro/internal/logger"
	"eve-metro/internal/sde"

	"golang.org/x/sync/singleflight"
)

// DefaultFeedURL is the EVE Scout public signature feed.
const DefaultFeedURL = "https://api.eve-scout.com/v2/public/signatures"

// eolHours marks a wormhole as end-of-life when this little lifetime remains.
const eolHours = 4

// cacheTTL bounds how stale a served feed snapshot may be. Route requests are
// bursty; one fetch per minute is plenty for a feed that updates on scout
// cadence.
const cacheTTL = time.Minute

// RawSignature is one record from the scouting feed.
type RawSignature struct {
	ID             int64   `json:"id"`
	SignatureType  string  `json:"signature_type"` // only "wormhole" records are mapped
	WhType         string  `json:"wh_type"`
	MaxShipSize    string  `json:"max_ship_size"` // small | medium | large | xlarge | capital
	RemainingHours float64 `json:"remaining_hours"`
	ExitsOutward   bool    `json:"wh_exits_outward"`

	InSystemID  int32  `json:"in_system_id"`
	InSystemName string `json:"in_system_name"`
	InSignature string `json:"in_signature"`

	OutSystemID  int32  `json:"out_system_id"`
	OutSystemName string `json:"out_system_name"`
	OutSignature string `json:"out_signature"`
}

// Client polls the scouting feed with request coalescing and a short cache, so
// concurrent route calculations share one upstream fetch.
type Client struct {
	esi   *esi.Client
	url   string
	group singleflight.Group

	mu       sync.Mutex
	cached   []RawSignature
	cachedAt time.Time
}

// NewClient creates a feed client over the shared ESI transport.
func NewClient(esiClient *esi.Client, feedURL string) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &Client{esi: esiClient, url: feedURL}
}

// Fetch returns the current feed records, served from cache within the TTL.
func (c *Client) Fetch() ([]RawSignature, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < cacheTTL {
		sigs := c.cached
		c.mu.Unlock()
		return sigs, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("feed", func() (interface{}, error) {
		var sigs []RawSignature
		if err := c.esi.GetJSON(c.url, &sigs); err != nil {
			return nil, fmt.Errorf("scout feed: %w", err)
		}
		c.mu.Lock()
		c.cached = sigs
		c.cachedAt = time.Now()
		c.mu.Unlock()
		return sigs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RawSignature), nil
}

// NodeMap maps feed records onto the route-graph node model. Every wormhole
// yields two directed edges. Records missing a system id are skipped and
// logged rather than propagated with zero fields.
func NodeMap(sigs []RawSignature, static *sde.Data) map[int32]*graph.SystemNode {
	nodes := make(map[int32]*graph.SystemNode)
	for _, sig := range sigs {
		if sig.SignatureType != "" && sig.SignatureType != "wormhole" {
			continue
		}
		if sig.InSystemID == 0 || sig.OutSystemID == 0 {
			logger.Warn("SCOUT", fmt.Sprintf("Skipping malformed feed record %d: missing system id", sig.ID))
			continue
		}
		size := parseShipSize(sig.MaxShipSize)
		eol := sig.RemainingHours > 0 && sig.RemainingHours <= eolHours

		in := ensureNode(nodes, static, sig.InSystemID, sig.InSystemName)
		out := ensureNode(nodes, static, sig.OutSystemID, sig.OutSystemName)

		in.Edges = append(in.Edges, graph.SystemEdge{
			To:            sig.OutSystemID,
			ToName:        out.Name,
			ToSecurity:    out.Security,
			MaxShipSize:   size,
			Source:        graph.SourceEveScout,
			SignatureFrom: sig.InSignature,
			SignatureTo:   sig.OutSignature,
			TypeFrom:      whTypeFor(sig, true),
			TypeTo:        whTypeFor(sig, false),
			TimeCritical:  eol,
		})
		out.Edges = append(out.Edges, graph.SystemEdge{
			To:            sig.InSystemID,
			ToName:        in.Name,
			ToSecurity:    in.Security,
			MaxShipSize:   size,
			Source:        graph.SourceEveScout,
			SignatureFrom: sig.OutSignature,
			SignatureTo:   sig.InSignature,
			TypeFrom:      whTypeFor(sig, false),
			TypeTo:        whTypeFor(sig, true),
			TimeCritical:  eol,
		})
	}
	return nodes
}

// ensureNode materializes a node, preferring static identity data when known.
func ensureNode(nodes map[int32]*graph.SystemNode, static *sde.Data, id int32, name string) *graph.SystemNode {
	if n, ok := nodes[id]; ok {
		return n
	}
	node := &graph.SystemNode{ID: id, Name: name, MaxShipSize: graph.Capital}
	if static != nil {
		if sys, ok := static.Systems[id]; ok {
			node.Name = sys.Name
			node.Security = sys.Security
		}
	}
	nodes[id] = node
	return node
}

// whTypeFor returns the wormhole type code for one side of a record. The feed
// names the hole on the side it exits from; the far side scans it as K162.
func whTypeFor(sig RawSignature, inSide bool) string {
	if sig.ExitsOutward == inSide {
		return sig.WhType
	}
	return "K162"
}

func parseShipSize(s string) graph.ShipSize {
	switch s {
	case "small":
		return graph.Frigate
	case "medium":
		return graph.Cruiser
	case "large":
		return graph.Battleship
	case "xlarge":
		return graph.Freighter
	case "capital":
		return graph.Capital
	}
	// Unknown sizes pass battleships; most holes are large.
	return graph.Battleship
}
