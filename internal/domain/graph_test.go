package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestAdjacencyGraphConnect(t *testing.T) {
	t.Run("records both directions", func(t *testing.T) {
		g := NewAdjacencyGraph()
		if !g.Connect("a", "b") {
			t.Fatal("expected new edge")
		}
		if !g.HasEdge("a", "b") || !g.HasEdge("b", "a") {
			t.Error("expected symmetric edge")
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		g := NewAdjacencyGraph()
		g.Connect("a", "b")
		if g.Connect("b", "a") {
			t.Error("reverse duplicate should not be a new edge")
		}
		if g.EdgeCount() != 1 {
			t.Errorf("expected 1 edge, got %d", g.EdgeCount())
		}
	})

	t.Run("self loops ignored", func(t *testing.T) {
		g := NewAdjacencyGraph()
		if g.Connect("a", "a") {
			t.Error("self loop should be rejected")
		}
		if g.HasEdge("a", "a") {
			t.Error("self loop recorded")
		}
	})

	t.Run("empty ids ignored", func(t *testing.T) {
		g := NewAdjacencyGraph()
		if g.Connect("", "b") {
			t.Error("empty id should be rejected")
		}
		if len(g.Nodes()) != 0 {
			t.Errorf("expected no nodes, got %v", g.Nodes())
		}
	})
}

func TestAdjacencyGraphNeighborsSorted(t *testing.T) {
	g := NewAdjacencyGraph()
	g.Connect("hub", "c")
	g.Connect("hub", "a")
	g.Connect("hub", "b")

	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, g.Neighbors("hub")); diff != "" {
		t.Errorf("Neighbors mismatch (-want +got):\n%s", diff)
	}
	if got := g.Neighbors("missing"); len(got) != 0 {
		t.Errorf("expected no neighbors for unknown node, got %v", got)
	}
}

func TestAdjacencyGraphMarshalJSON(t *testing.T) {
	g := NewAdjacencyGraph()
	g.Connect("SW1", "SW2")
	g.AddNode("FW1")

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string][]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string][]string{
		"FW1": {},
		"SW1": {"SW2"},
		"SW2": {"SW1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestAdjacencyGraphRoundTrip(t *testing.T) {
	g := NewAdjacencyGraph()
	g.Connect("SW1", "SW2")
	g.Connect("SW2", "AP1")
	g.AddNode("FW1")

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(g)
		if err != nil {
			t.Fatal(err)
		}
		got := NewAdjacencyGraph()
		if err := json.Unmarshal(data, got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(g.Map(), got.Map()); diff != "" {
			t.Errorf("graph mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := yaml.Marshal(g)
		if err != nil {
			t.Fatal(err)
		}
		var got AdjacencyGraph
		if err := yaml.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(g.Map(), got.Map()); diff != "" {
			t.Errorf("graph mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("asymmetric input is made symmetric", func(t *testing.T) {
		var got AdjacencyGraph
		if err := json.Unmarshal([]byte(`{"a":["b","a"]}`), &got); err != nil {
			t.Fatal(err)
		}
		if !got.HasEdge("b", "a") || got.HasEdge("a", "a") {
			t.Errorf("unexpected graph %v", got.Map())
		}
	})
}
