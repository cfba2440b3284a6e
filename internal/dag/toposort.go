package dag

import (
	"container/heap"
	"sort"
)

// TopoSort orders the nodes with Kahn's algorithm, always taking the
// lexicographically smallest node whose dependencies are placed. Nodes that
// cannot be placed because they sit on or behind a cycle are returned,
// sorted, as remainder.
func (g *Graph) TopoSort() (order []string, remainder []string) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	inDegree := make(map[string]int, len(g.nodes))
	ready := &minHeap{}
	for id, n := range g.nodes {
		inDegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	order = make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for dep := range g.nodes[id].dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}
	for id, d := range inDegree {
		if d > 0 {
			remainder = append(remainder, id)
		}
	}
	sort.Strings(remainder)
	return order, remainder
}

type minHeap []string

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
