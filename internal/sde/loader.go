package sde

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"eve-metro/internal/graph"
	"eve-metro/internal/logger"
)

const sdeURL = "https://developers.eveonline.com/static-data/eve-online-static-data-latest-jsonl.zip"

// Data holds the parsed static universe: permanent solar systems and their
// stargate connections. This is the k-space half of the route graph; wormhole
// sources are layered on top at search time.
type Data struct {
	Systems      map[int32]*SolarSystem // systemID -> system
	SystemByName map[string]int32       // lowercase name -> systemID
	SystemNames  []string               // all system names for autocomplete
	Regions      map[int32]*Region      // regionID -> region

	gates map[int32][]int32 // systemID -> neighboring systemIDs
}

// Region represents an EVE region from the SDE.
type Region struct {
	ID   int32
	Name string
}

// SolarSystem represents an EVE solar system from the SDE.
type SolarSystem struct {
	ID       int32
	Name     string
	RegionID int32
	Security float64 // 0.0 (null) to 1.0 (highsec); highsec >= 0.45
}

// Load downloads (if needed) and parses the SDE snapshot.
func Load(dataDir string) (*Data, error) {
	zipPath := filepath.Join(dataDir, "sde.zip")
	extractDir := filepath.Join(dataDir, "sde")

	if _, err := os.Stat(extractDir); os.IsNotExist(err) {
		logger.Info("SDE", "Downloading data...")
		if err := downloadFile(zipPath, sdeURL); err != nil {
			return nil, fmt.Errorf("download SDE: %w", err)
		}
		logger.Info("SDE", "Extracting data...")
		if err := extractZip(zipPath, extractDir); err != nil {
			return nil, fmt.Errorf("extract SDE: %w", err)
		}
	}

	data := New()

	logger.Info("SDE", "Loading regions...")
	if err := data.loadRegions(extractDir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading solar systems...")
	if err := data.loadSystems(extractDir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading stargates...")
	if err := data.loadStargates(extractDir); err != nil {
		return nil, err
	}

	logger.Section("SDE Statistics")
	logger.Stats("Regions", len(data.Regions))
	logger.Stats("Systems", len(data.Systems))
	return data, nil
}

// New creates an empty Data with initialized maps.
func New() *Data {
	return &Data{
		Systems:      make(map[int32]*SolarSystem),
		SystemByName: make(map[string]int32),
		Regions:      make(map[int32]*Region),
		gates:        make(map[int32][]int32),
	}
}

// AddSystem registers a solar system.
func (d *Data) AddSystem(s *SolarSystem) {
	d.Systems[s.ID] = s
	d.SystemByName[strings.ToLower(s.Name)] = s.ID
	d.SystemNames = append(d.SystemNames, s.Name)
}

// AddGate adds a directed stargate connection. The SDE lists each gate once per
// side, so loading the full file yields both directions.
func (d *Data) AddGate(fromSystem, toSystem int32) {
	d.gates[fromSystem] = append(d.gates[fromSystem], toSystem)
}

// NodeMap builds the static topology as a route-graph node map. Stargate edges
// carry a capital ceiling: gates pass any hull.
func (d *Data) NodeMap() map[int32]*graph.SystemNode {
	nodes := make(map[int32]*graph.SystemNode, len(d.Systems))
	for id, sys := range d.Systems {
		nodes[id] = &graph.SystemNode{
			ID:          id,
			Name:        sys.Name,
			Security:    sys.Security,
			MaxShipSize: graph.Capital,
		}
	}
	for from, neighbors := range d.gates {
		node, ok := nodes[from]
		if !ok {
			continue
		}
		for _, to := range neighbors {
			dest, ok := d.Systems[to]
			if !ok {
				continue
			}
			node.Edges = append(node.Edges, graph.SystemEdge{
				To:          to,
				ToName:      dest.Name,
				ToSecurity:  dest.Security,
				MaxShipSize: graph.Capital,
				Source:      graph.SourceKSpace,
			})
		}
	}
	return nodes
}

// SystemID resolves a system name (case-insensitive) to its ID.
func (d *Data) SystemID(name string) (int32, bool) {
	id, ok := d.SystemByName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

func (d *Data) loadRegions(dir string) error {
	return readJSONL(dir, "mapRegions", func(raw json.RawMessage) error {
		var r struct {
			Key  int32             `json:"_key"`
			Name map[string]string `json:"name"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		name := r.Name["en"]
		if name == "" {
			return nil
		}
		d.Regions[r.Key] = &Region{ID: r.Key, Name: name}
		return nil
	})
}

func (d *Data) loadSystems(dir string) error {
	return readJSONL(dir, "mapSolarSystems", func(raw json.RawMessage) error {
		var s struct {
			Key            int32             `json:"_key"`
			Name           map[string]string `json:"name"`
			RegionID       int32             `json:"regionID"`
			Security       float64           `json:"security"`
			SecurityStatus float64           `json:"securityStatus"` // alternate SDE field name
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		name := s.Name["en"]
		if name == "" {
			return nil
		}
		sec := s.Security
		if sec == 0 && s.SecurityStatus != 0 {
			sec = s.SecurityStatus
		}
		d.AddSystem(&SolarSystem{ID: s.Key, Name: name, RegionID: s.RegionID, Security: sec})
		return nil
	})
}

func (d *Data) loadStargates(dir string) error {
	return readJSONL(dir, "mapStargates", func(raw json.RawMessage) error {
		var g struct {
			SolarSystemID int32 `json:"solarSystemID"`
			Destination   struct {
				SolarSystemID int32 `json:"solarSystemID"`
			} `json:"destination"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		if g.SolarSystemID != 0 && g.Destination.SolarSystemID != 0 {
			d.AddGate(g.SolarSystemID, g.Destination.SolarSystemID)
		}
		return nil
	})
}

// readJSONL finds and reads a .jsonl file by base name from the extracted SDE directory.
func readJSONL(dir, baseName string, fn func(json.RawMessage) error) error {
	var filePath string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := strings.TrimSuffix(info.Name(), ".jsonl")
		if strings.EqualFold(name, baseName) {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return err
	}
	if filePath == "" {
		logger.Warn("SDE", fmt.Sprintf("File %s.jsonl not found, skipping", baseName))
		return nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			continue // skip malformed lines
		}
	}
	return scanner.Err()
}

func downloadFile(dst, url string) error {
	os.MkdirAll(filepath.Dir(dst), 0755)
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func extractZip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve extract dir: %w", err)
	}

	for _, f := range r.File {
		fpath := filepath.Join(dstAbs, f.Name)

		// Zip slip guard: ensure the resolved path stays within dst
		if rel, err := filepath.Rel(dstAbs, fpath); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("illegal zip entry path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(fpath, 0755)
			continue
		}
		os.MkdirAll(filepath.Dir(fpath), 0755)
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(fpath)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
