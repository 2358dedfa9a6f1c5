package domain

import (
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"
)

// AdjacencyGraph maps a device id to the set of device ids it is directly attached to.
// Edges are undirected and unlabeled.
type AdjacencyGraph struct {
	adj map[string]map[string]struct{}
}

// NewAdjacencyGraph creates an empty graph
func NewAdjacencyGraph() *AdjacencyGraph {
	return &AdjacencyGraph{adj: make(map[string]map[string]struct{})}
}

// AddNode registers a device without edges
func (g *AdjacencyGraph) AddNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]struct{})
	}
}

// Connect records the undirected edge a<->b.
// Self-loops are ignored and duplicates collapse. Returns true if the edge is new.
func (g *AdjacencyGraph) Connect(a, b string) bool {
	if a == b || a == "" || b == "" {
		return false
	}
	g.AddNode(a)
	g.AddNode(b)
	if _, exists := g.adj[a][b]; exists {
		return false
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
	return true
}

// HasEdge reports whether a and b are adjacent
func (g *AdjacencyGraph) HasEdge(a, b string) bool {
	_, ok := g.adj[a][b]
	return ok
}

// HasNode reports whether id is part of the graph
func (g *AdjacencyGraph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns the neighbors of id sorted lexicographically
func (g *AdjacencyGraph) Neighbors(id string) []string {
	set := g.adj[id]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Nodes returns all node ids sorted lexicographically
func (g *AdjacencyGraph) Nodes() []string {
	out := make([]string, 0, len(g.adj))
	for id := range g.adj {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EdgeCount returns the number of undirected edges
func (g *AdjacencyGraph) EdgeCount() int {
	n := 0
	for _, set := range g.adj {
		n += len(set)
	}
	return n / 2
}

// Map returns a copy of the adjacency as sorted neighbor lists
func (g *AdjacencyGraph) Map() map[string][]string {
	out := make(map[string][]string, len(g.adj))
	for id := range g.adj {
		out[id] = g.Neighbors(id)
	}
	return out
}

// RenderLine is one entry of a rendered topology forest
type RenderLine struct {
	Depth    int    `json:"depth" yaml:"depth"`
	DeviceID string `json:"device_id" yaml:"device_id"`
	Name     string `json:"name" yaml:"name"`
	Model    string `json:"model" yaml:"model"`
	Known    bool   `json:"known" yaml:"known"`
}

// MarshalJSON encodes the graph as sorted neighbor lists
func (g *AdjacencyGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Map())
}

// MarshalYAML encodes the graph as sorted neighbor lists
func (g *AdjacencyGraph) MarshalYAML() (interface{}, error) {
	return g.Map(), nil
}

// UnmarshalJSON rebuilds the graph from neighbor lists
func (g *AdjacencyGraph) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	g.load(m)
	return nil
}

// UnmarshalYAML rebuilds the graph from neighbor lists
func (g *AdjacencyGraph) UnmarshalYAML(value *yaml.Node) error {
	var m map[string][]string
	if err := value.Decode(&m); err != nil {
		return err
	}
	g.load(m)
	return nil
}

func (g *AdjacencyGraph) load(m map[string][]string) {
	g.adj = make(map[string]map[string]struct{}, len(m))
	for id, neighbors := range m {
		g.AddNode(id)
		for _, n := range neighbors {
			g.Connect(id, n)
		}
	}
}
