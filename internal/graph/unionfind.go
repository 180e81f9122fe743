package graph

import "sort"

// UnionFind implements union-find with path compression and union by rank
type UnionFind[K comparable] struct {
	parent map[K]K
	rank   map[K]int
	size   map[K]int
}

// NewUnionFind creates a new UnionFind where each element is its own component
func NewUnionFind[K comparable](ids []K) *UnionFind[K] {
	uf := &UnionFind[K]{
		parent: make(map[K]K, len(ids)),
		rank:   make(map[K]int, len(ids)),
		size:   make(map[K]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
		uf.size[id] = 1
	}
	return uf
}

// Find returns the root of the component containing id, with path compression
func (uf *UnionFind[K]) Find(id K) K {
	parent, ok := uf.parent[id]
	if !ok || parent == id {
		return id
	}
	root := uf.Find(parent)
	uf.parent[id] = root
	return root
}

// Union merges the components containing a and b. Returns true if they were separate.
func (uf *UnionFind[K]) Union(a, b K) bool {
	rootA, rootB := uf.Find(a), uf.Find(b)
	if rootA == rootB {
		return false
	}
	if uf.rank[rootA] < uf.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	uf.parent[rootB] = rootA
	uf.size[rootA] += uf.size[rootB]
	if uf.rank[rootA] == uf.rank[rootB] {
		uf.rank[rootA]++
	}
	return true
}

// Size returns the number of members in id's component.
func (uf *UnionFind[K]) Size(id K) int {
	return uf.size[uf.Find(id)]
}

// Components returns all connected components, largest first
func (uf *UnionFind[K]) Components(less func(a, b K) bool) [][]K {
	groups := make(map[K][]K)
	for id := range uf.parent {
		root := uf.Find(id)
		groups[root] = append(groups[root], id)
	}
	result := make([][]K, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return less(members[i], members[j]) })
		result = append(result, members)
	}
	sort.Slice(result, func(i, j int) bool {
		if len(result[i]) != len(result[j]) {
			return len(result[i]) > len(result[j])
		}
		return less(result[i][0], result[j][0])
	})
	return result
}
