package topology

import "fleetscope/internal/domain"

const (
	unknownName  = "Unknown Device"
	unknownModel = "Device"
)

// frame is one level of the explicit DFS stack
type frame struct {
	depth int
	next  []string // neighbors not yet examined
}

// Render walks graph depth-first from each root in order and returns the forest in
// pre-order. The visited set is shared by all roots, so every device appears at most
// once and cycles terminate. Devices missing from lookup render as "Unknown Device".
func Render(graph *domain.AdjacencyGraph, roots []string, lookup map[string]domain.Device) []domain.RenderLine {
	var lines []domain.RenderLine
	visited := make(map[string]struct{})

	emit := func(id string, depth int) {
		visited[id] = struct{}{}
		lines = append(lines, line(id, depth, lookup))
	}

	for _, root := range roots {
		if _, seen := visited[root]; seen {
			continue
		}
		emit(root, 0)

		stack := []frame{{depth: 0, next: graph.Neighbors(root)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				stack = stack[:len(stack)-1]
				continue
			}

			id := top.next[0]
			top.next = top.next[1:]
			if _, seen := visited[id]; seen {
				continue
			}

			depth := top.depth + 1
			emit(id, depth)
			stack = append(stack, frame{depth: depth, next: graph.Neighbors(id)})
		}
	}

	return lines
}

func line(id string, depth int, lookup map[string]domain.Device) domain.RenderLine {
	d, ok := lookup[id]
	if !ok {
		return domain.RenderLine{Depth: depth, DeviceID: id, Name: unknownName, Model: unknownModel}
	}

	model := d.Model
	if model == "" {
		model = unknownModel
	}
	return domain.RenderLine{
		Depth:    depth,
		DeviceID: id,
		Name:     d.DisplayName(),
		Model:    model,
		Known:    true,
	}
}
