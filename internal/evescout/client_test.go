package evescout

import (
	"testing"

	"eve-metro/internal/graph"
	"eve-metro/internal/sde"
)

func feedRecord() RawSignature {
	return RawSignature{
		ID:             1,
		SignatureType:  "wormhole",
		WhType:         "F353",
		MaxShipSize:    "medium",
		RemainingHours: 12,
		ExitsOutward:   true,
		InSystemID:     31000005,
		InSystemName:   "Thera",
		InSignature:    "ABC-123",
		OutSystemID:    30000142,
		OutSystemName:  "Jita",
		OutSignature:   "XYZ-789",
	}
}

func staticData() *sde.Data {
	d := sde.New()
	d.AddSystem(&sde.SolarSystem{ID: 30000142, Name: "Jita", Security: 0.95})
	d.AddSystem(&sde.SolarSystem{ID: 31000005, Name: "Thera", Security: -0.99})
	return d
}

func TestNodeMap_TwoDirectedEdges(t *testing.T) {
	nodes := NodeMap([]RawSignature{feedRecord()}, staticData())
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(nodes))
	}

	thera := nodes[31000005]
	jita := nodes[30000142]
	if thera == nil || jita == nil {
		t.Fatal("both endpoints should be materialized")
	}
	if len(thera.Edges) != 1 || len(jita.Edges) != 1 {
		t.Fatalf("edges = %d/%d, want 1/1", len(thera.Edges), len(jita.Edges))
	}

	out := thera.Edges[0]
	if out.To != 30000142 || out.SignatureFrom != "ABC-123" || out.SignatureTo != "XYZ-789" {
		t.Errorf("outbound edge = %+v", out)
	}
	if out.Source != graph.SourceEveScout {
		t.Errorf("Source = %q, want eve-scout", out.Source)
	}
	if out.MaxShipSize != graph.Cruiser {
		t.Errorf("MaxShipSize = %v, want Cruiser for medium hole", out.MaxShipSize)
	}
	if out.ToSecurity != 0.95 {
		t.Errorf("ToSecurity = %v, want static Jita security", out.ToSecurity)
	}

	back := jita.Edges[0]
	if back.To != 31000005 || back.SignatureFrom != "XYZ-789" {
		t.Errorf("return edge = %+v", back)
	}
}

func TestNodeMap_K162OnFarSide(t *testing.T) {
	rec := feedRecord() // exits outward: typed hole sits on the in-side
	nodes := NodeMap([]RawSignature{rec}, staticData())

	out := nodes[31000005].Edges[0]
	if out.TypeFrom != "F353" || out.TypeTo != "K162" {
		t.Errorf("types = %q/%q, want F353/K162", out.TypeFrom, out.TypeTo)
	}
	back := nodes[30000142].Edges[0]
	if back.TypeFrom != "K162" || back.TypeTo != "F353" {
		t.Errorf("return types = %q/%q, want K162/F353", back.TypeFrom, back.TypeTo)
	}
}

func TestNodeMap_EOLMarkedTimeCritical(t *testing.T) {
	rec := feedRecord()
	rec.RemainingHours = 2
	nodes := NodeMap([]RawSignature{rec}, staticData())
	if !nodes[31000005].Edges[0].TimeCritical {
		t.Error("edge with 2h remaining should be time-critical")
	}

	rec.RemainingHours = 12
	nodes = NodeMap([]RawSignature{rec}, staticData())
	if nodes[31000005].Edges[0].TimeCritical {
		t.Error("edge with 12h remaining should not be time-critical")
	}
}

func TestNodeMap_SkipsMalformedRecords(t *testing.T) {
	rec := feedRecord()
	rec.OutSystemID = 0
	nodes := NodeMap([]RawSignature{rec}, staticData())
	if len(nodes) != 0 {
		t.Errorf("nodes = %d, want 0 for record missing a system id", len(nodes))
	}
}

func TestNodeMap_SkipsNonWormholeRecords(t *testing.T) {
	rec := feedRecord()
	rec.SignatureType = "data"
	nodes := NodeMap([]RawSignature{rec}, staticData())
	if len(nodes) != 0 {
		t.Errorf("nodes = %d, want 0 for non-wormhole record", len(nodes))
	}
}

func TestParseShipSize(t *testing.T) {
	tests := []struct {
		in   string
		want graph.ShipSize
	}{
		{"small", graph.Frigate},
		{"medium", graph.Cruiser},
		{"large", graph.Battleship},
		{"xlarge", graph.Freighter},
		{"capital", graph.Capital},
		{"unknown", graph.Battleship},
		{"", graph.Battleship},
	}
	for _, tt := range tests {
		if got := parseShipSize(tt.in); got != tt.want {
			t.Errorf("parseShipSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
