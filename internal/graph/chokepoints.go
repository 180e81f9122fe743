package graph

import "sort"

// Chokepoint is a trip whose removal splits the transition graph
type Chokepoint struct {
	ID        string `json:"id" yaml:"id"`
	Prompt    string `json:"prompt" yaml:"prompt"`
	Neighbors int    `json:"neighbors" yaml:"neighbors"`
	Active    bool   `json:"active" yaml:"active"`
}

// SoleTransition is a transition that is the only link between two parts of the graph
type SoleTransition struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Count int    `json:"count" yaml:"count"`
}

// ChokepointReport contains cut-vertex and bridge analysis of the transition graph
type ChokepointReport struct {
	Chokepoints     []Chokepoint     `json:"chokepoints" yaml:"chokepoints"`
	SoleTransitions []SoleTransition `json:"sole_transitions" yaml:"sole_transitions"`
	// DepletedChokepoints counts chokepoints whose pool is already exhausted.
	DepletedChokepoints int `json:"depleted_chokepoints" yaml:"depleted_chokepoints"`
}

// ComputeChokepoints runs Tarjan's algorithm over the undirected view of the
// transition edges. Transition direction is ignored; a bridge is reported in
// the direction it was most often taken.
func ComputeChokepoints(g *TripGraph) *ChokepointReport {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return &ChokepointReport{}
	}
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	n := len(ids)

	type pair struct{ u, v int }
	adj := make([][]int, n)
	// undirected pair -> directed transition with the higher count
	taken := make(map[pair]TripEdge)
	for _, from := range ids {
		for _, e := range g.Edges[from] {
			u, okU := idx[e.From]
			v, okV := idx[e.To]
			if !okU || !okV || u == v {
				continue
			}
			key := pair{u, v}
			if u > v {
				key = pair{v, u}
			}
			prev, seen := taken[key]
			if !seen {
				adj[u] = append(adj[u], v)
				adj[v] = append(adj[v], u)
			}
			if !seen || e.Count > prev.Count {
				taken[key] = e
			}
		}
	}

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isCut := make([]bool, n)
	var bridges []pair
	counter := 1

	const noParent = -1
	type frame struct {
		node, parent, next int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		disc[start], low[start] = counter, counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node
			if top.next < len(adj[node]) {
				child := adj[node][top.next]
				top.next++
				if child == top.parent {
					continue
				}
				if visited[child] {
					low[node] = min(low[node], disc[child])
					continue
				}
				visited[child] = true
				disc[child], low[child] = counter, counter
				counter++
				if node == start {
					rootChildren++
				}
				stack = append(stack, frame{child, node, 0})
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			p := stack[len(stack)-1].node
			low[p] = min(low[p], low[node])
			if low[node] > disc[p] {
				key := pair{p, node}
				if p > node {
					key = pair{node, p}
				}
				bridges = append(bridges, key)
			}
			if p != start && low[node] >= disc[p] {
				isCut[p] = true
			}
		}
		if rootChildren >= 2 {
			isCut[start] = true
		}
	}

	r := &ChokepointReport{}
	for i, cut := range isCut {
		if !cut {
			continue
		}
		node := g.Nodes[ids[i]]
		r.Chokepoints = append(r.Chokepoints, Chokepoint{
			ID:        node.ID,
			Prompt:    node.Prompt,
			Neighbors: len(adj[i]),
			Active:    node.Active,
		})
		if !node.Active {
			r.DepletedChokepoints++
		}
	}
	sort.SliceStable(r.Chokepoints, func(i, j int) bool {
		return r.Chokepoints[i].Neighbors > r.Chokepoints[j].Neighbors
	})

	for _, b := range bridges {
		e := taken[b]
		r.SoleTransitions = append(r.SoleTransitions, SoleTransition{From: e.From, To: e.To, Count: e.Count})
	}
	sort.Slice(r.SoleTransitions, func(i, j int) bool {
		a, b := r.SoleTransitions[i], r.SoleTransitions[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return r
}
