package topology

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fleetscope/internal/domain"
)

type step struct {
	Depth int
	ID    string
}

func steps(lines []domain.RenderLine) []step {
	out := make([]step, len(lines))
	for i, l := range lines {
		out[i] = step{l.Depth, l.DeviceID}
	}
	return out
}

func TestRenderFromSwitchRoot(t *testing.T) {
	g := domain.NewAdjacencyGraph()
	g.Connect("SW1", "SW2")
	lookup := map[string]domain.Device{
		"SW1": {Serial: "SW1", Model: "MS120-8", Name: "core"},
		"SW2": {Serial: "SW2", Model: "MS120-8", Name: "access"},
	}

	got := Render(g, []string{"SW1"}, lookup)

	want := []domain.RenderLine{
		{Depth: 0, DeviceID: "SW1", Name: "core", Model: "MS120-8", Known: true},
		{Depth: 1, DeviceID: "SW2", Name: "access", Model: "MS120-8", Known: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderIsolatedRoot(t *testing.T) {
	g := domain.NewAdjacencyGraph()
	g.Connect("SW1", "SW2")
	lookup := map[string]domain.Device{
		"FW1": {Serial: "FW1", Model: "MX68", Name: "edge"},
	}

	got := steps(Render(g, []string{"FW1"}, lookup))

	if diff := cmp.Diff([]step{{0, "FW1"}}, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderCycleTerminates(t *testing.T) {
	g := domain.NewAdjacencyGraph()
	g.Connect("A", "B")
	g.Connect("B", "C")
	g.Connect("C", "A")

	got := steps(Render(g, []string{"A"}, nil))

	want := []step{{0, "A"}, {1, "B"}, {2, "C"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	g := domain.NewAdjacencyGraph()
	g.Connect("SW1", "GHOST")
	lookup := map[string]domain.Device{
		"SW1": {Serial: "SW1", Model: "MS120"},
	}

	got := Render(g, []string{"SW1"}, lookup)

	want := []domain.RenderLine{
		{Depth: 0, DeviceID: "SW1", Name: "SW1", Model: "MS120", Known: true},
		{Depth: 1, DeviceID: "GHOST", Name: "Unknown Device", Model: "Device"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSharesVisitedAcrossRoots(t *testing.T) {
	g := domain.NewAdjacencyGraph()
	g.Connect("FW1", "SW1")
	g.Connect("FW2", "SW1")

	got := steps(Render(g, []string{"FW1", "FW2", "FW1"}, nil))

	want := []step{{0, "FW1"}, {1, "SW1"}, {2, "FW2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDeepChain(t *testing.T) {
	const depth = 100000
	g := domain.NewAdjacencyGraph()
	for i := 0; i < depth-1; i++ {
		g.Connect(fmt.Sprintf("N%06d", i), fmt.Sprintf("N%06d", i+1))
	}

	lines := Render(g, []string{"N000000"}, nil)

	if len(lines) != depth {
		t.Fatalf("expected %d lines, got %d", depth, len(lines))
	}
	if last := lines[len(lines)-1]; last.Depth != depth-1 {
		t.Errorf("expected last depth %d, got %d", depth-1, last.Depth)
	}
}

// recursiveRender is the straightforward recursive walk used as a reference
func recursiveRender(g *domain.AdjacencyGraph, roots []string) []step {
	var out []step
	visited := make(map[string]bool)
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		visited[id] = true
		out = append(out, step{depth, id})
		for _, n := range g.Neighbors(id) {
			if !visited[n] {
				walk(n, depth+1)
			}
		}
	}
	for _, r := range roots {
		if !visited[r] {
			walk(r, 0)
		}
	}
	return out
}

func TestRenderMatchesRecursiveWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 100; round++ {
		n := 1 + rng.Intn(15)
		g := domain.NewAdjacencyGraph()
		for i := 0; i < n*2; i++ {
			g.Connect(fmt.Sprintf("D%02d", rng.Intn(n)), fmt.Sprintf("D%02d", rng.Intn(n)))
		}
		var roots []string
		for i := 0; i < 1+rng.Intn(3); i++ {
			roots = append(roots, fmt.Sprintf("D%02d", rng.Intn(n)))
		}

		got := steps(Render(g, roots, nil))
		want := recursiveRender(g, roots)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round %d: render mismatch (-want +got):\n%s", round, diff)
		}

		seen := make(map[string]bool)
		for _, s := range got {
			if seen[s.ID] {
				t.Fatalf("round %d: %s emitted twice", round, s.ID)
			}
			seen[s.ID] = true
		}
	}
}
