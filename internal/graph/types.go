package graph

import "strings"

// ShipSize classifies hulls by the mass a wormhole must pass for them to jump.
// Ordering matters: a ship may use an edge only if its class mass is at most the
// edge's ceiling mass.
type ShipSize int

const (
	Frigate ShipSize = iota
	Cruiser
	Battleship
	Freighter
	Capital
)

// shipMass maps each class to its jump mass in kg.
var shipMass = map[ShipSize]float64{
	Frigate:    5_000_000,
	Cruiser:    62_000_000,
	Battleship: 375_000_000,
	Freighter:  1_000_000_000,
	Capital:    1_800_000_000,
}

// Mass returns the jump mass of the class in kg.
func (s ShipSize) Mass() float64 {
	return shipMass[s]
}

// CanPass reports whether a ship of this class fits through a ceiling of the
// given class.
func (s ShipSize) CanPass(ceiling ShipSize) bool {
	return s.Mass() <= ceiling.Mass()
}

func (s ShipSize) String() string {
	switch s {
	case Frigate:
		return "frigate"
	case Cruiser:
		return "cruiser"
	case Battleship:
		return "battleship"
	case Freighter:
		return "freighter"
	case Capital:
		return "capital"
	}
	return "unknown"
}

// ParseShipSize maps a request string to a ShipSize. Returns false for unknown
// values.
func ParseShipSize(s string) (ShipSize, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frigate":
		return Frigate, true
	case "cruiser":
		return Cruiser, true
	case "battleship":
		return Battleship, true
	case "freighter":
		return Freighter, true
	case "capital":
		return Capital, true
	}
	return Frigate, false
}

// Provenance tags which source graph contributed an edge.
type Provenance string

const (
	SourceKSpace   Provenance = "k-space"
	SourceEveScout Provenance = "eve-scout"
	SourceTrigMap  Provenance = "trig-map"
)

// SystemEdge is a directed link out of a system. Wormhole-sourced connections
// contribute two of these, one per direction, unless the provider only exposes
// one side.
type SystemEdge struct {
	To          int32      `json:"to"`
	ToName      string     `json:"to_name,omitempty"`
	ToSecurity  float64    `json:"to_security"`
	MaxShipSize ShipSize   `json:"max_ship_size"`
	Source      Provenance `json:"source"`

	// Wormhole metadata; absent on stargate edges.
	SignatureFrom  string `json:"signature_from,omitempty"`
	SignatureTo    string `json:"signature_to,omitempty"`
	TypeFrom       string `json:"type_from,omitempty"`
	TypeTo         string `json:"type_to,omitempty"`
	MassCritical   bool   `json:"mass_critical,omitempty"`
	TimeCritical   bool   `json:"time_critical,omitempty"`
	ExpiryReported bool   `json:"expiry_reported,omitempty"`
}

// SystemNode is one solar system plus its outgoing edges.
type SystemNode struct {
	ID          int32        `json:"id"`
	Name        string       `json:"name"`
	Security    float64      `json:"security"`
	MaxShipSize ShipSize     `json:"max_ship_size"`
	Edges       []SystemEdge `json:"edges"`
}
