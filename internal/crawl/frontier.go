package crawl

import "container/heap"

// frontierItem is one pending URL with its crawl position.
type frontierItem struct {
	URL            string
	Depth          int // path depth relative to the seed
	DiscoveryDepth int // hops along the discovery chain
	order          int // insertion sequence, breaks depth ties
}

// Frontier is a priority queue ordered by (depth asc, discovery order
// asc) so crawls proceed breadth-first with stable ordering.
type Frontier struct {
	items frontierHeap
	next  int
}

func NewFrontier() *Frontier {
	f := &Frontier{}
	heap.Init(&f.items)
	return f
}

func (f *Frontier) Push(url string, depth, discoveryDepth int) {
	heap.Push(&f.items, &frontierItem{
		URL:            url,
		Depth:          depth,
		DiscoveryDepth: discoveryDepth,
		order:          f.next,
	})
	f.next++
}

// Pop removes the shallowest, earliest-discovered URL.
func (f *Frontier) Pop() (*frontierItem, bool) {
	if f.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&f.items).(*frontierItem), true
}

func (f *Frontier) Len() int { return f.items.Len() }

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].order < h[j].order
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) { *h = append(*h, x.(*frontierItem)) }

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
