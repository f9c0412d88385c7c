package netanalysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/community"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
)

// adjacency is the dense working form of a network used by the hand-rolled
// community detection code. Node index equals the position of the symbol in
// the graph's sorted symbol list.
type adjacency struct {
	n     int
	nbrs  [][]int
	wts   [][]float64
	selfw []float64
	deg   []float64
	m2    float64
}

func newAdjacency(g *GeneGraph) (*adjacency, []string) {
	symbols := g.Symbols()
	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		index[s] = i
	}
	a := &adjacency{
		n:     len(symbols),
		nbrs:  make([][]int, len(symbols)),
		wts:   make([][]float64, len(symbols)),
		selfw: make([]float64, len(symbols)),
		deg:   make([]float64, len(symbols)),
	}
	for i, s := range symbols {
		for _, partner := range g.Neighbors(s) {
			c, ok := g.Confidence(s, partner)
			if !ok {
				continue
			}
			w := float64(c) / 1000.0
			a.nbrs[i] = append(a.nbrs[i], index[partner])
			a.wts[i] = append(a.wts[i], w)
			a.deg[i] += w
			a.m2 += w
		}
	}
	return a, symbols
}

// modularityOf computes Q for a partition at the given resolution.
func modularityOf(a *adjacency, assign []int, resolution float64) float64 {
	if a.m2 == 0 {
		return 0
	}
	in := make(map[int]float64)
	tot := make(map[int]float64)
	for i := 0; i < a.n; i++ {
		c := assign[i]
		tot[c] += a.deg[i]
		in[c] += 2 * a.selfw[i]
		for k, j := range a.nbrs[i] {
			if assign[j] == c {
				in[c] += a.wts[i][k]
			}
		}
	}
	var q float64
	for c, w := range tot {
		q += in[c]/a.m2 - resolution*(w/a.m2)*(w/a.m2)
	}
	return q
}

// localMove runs deterministic greedy modularity optimization until no
// single-node move improves Q.
func localMove(a *adjacency, resolution float64) []int {
	comm := make([]int, a.n)
	tot := make([]float64, a.n)
	for i := 0; i < a.n; i++ {
		comm[i] = i
		tot[i] = a.deg[i]
	}
	if a.m2 == 0 {
		return comm
	}

	improved := true
	for improved {
		improved = false
		for i := 0; i < a.n; i++ {
			ci := comm[i]
			wTo := make(map[int]float64)
			for k, j := range a.nbrs[i] {
				wTo[comm[j]] += a.wts[i][k]
			}
			tot[ci] -= a.deg[i]

			cands := make([]int, 0, len(wTo))
			for c := range wTo {
				cands = append(cands, c)
			}
			sort.Ints(cands)

			best, bestGain := ci, wTo[ci]-resolution*a.deg[i]*tot[ci]/a.m2
			for _, c := range cands {
				if c == ci {
					continue
				}
				gain := wTo[c] - resolution*a.deg[i]*tot[c]/a.m2
				if gain > bestGain+1e-12 {
					best, bestGain = c, gain
				}
			}
			tot[best] += a.deg[i]
			if best != ci {
				comm[i] = best
				improved = true
			}
		}
	}
	return comm
}

// refine splits each community into well-connected subgroups: nodes may only
// join refined groups inside their own community, and only while they are
// still alone in their refined group.
func refine(a *adjacency, comm []int, resolution float64) []int {
	ref := make([]int, a.n)
	tot := make([]float64, a.n)
	for i := 0; i < a.n; i++ {
		ref[i] = i
		tot[i] = a.deg[i]
	}
	if a.m2 == 0 {
		return ref
	}
	for i := 0; i < a.n; i++ {
		if tot[ref[i]] != a.deg[i] {
			continue
		}
		wTo := make(map[int]float64)
		for k, j := range a.nbrs[i] {
			if comm[j] == comm[i] {
				wTo[ref[j]] += a.wts[i][k]
			}
		}
		cands := make([]int, 0, len(wTo))
		for c := range wTo {
			cands = append(cands, c)
		}
		sort.Ints(cands)

		ri := ref[i]
		best, bestGain := ri, 0.0
		for _, c := range cands {
			if c == ri {
				continue
			}
			gain := wTo[c] - resolution*a.deg[i]*tot[c]/a.m2
			if gain > bestGain+1e-12 {
				best, bestGain = c, gain
			}
		}
		if best != ri {
			tot[ri] -= a.deg[i]
			tot[best] += a.deg[i]
			ref[i] = best
		}
	}
	return ref
}

// aggregate collapses each group into a supernode, summing edge weights.
// It returns the coarse graph and the dense new index per group label.
func aggregate(a *adjacency, groups []int) (*adjacency, map[int]int) {
	order := make([]int, 0)
	seen := make(map[int]bool)
	for i := 0; i < a.n; i++ {
		if !seen[groups[i]] {
			seen[groups[i]] = true
			order = append(order, groups[i])
		}
	}
	id := make(map[int]int, len(order))
	for newIdx, label := range order {
		id[label] = newIdx
	}

	next := &adjacency{
		n:     len(order),
		nbrs:  make([][]int, len(order)),
		wts:   make([][]float64, len(order)),
		selfw: make([]float64, len(order)),
		deg:   make([]float64, len(order)),
	}
	cross := make(map[edgeKey]float64)
	for i := 0; i < a.n; i++ {
		gi := id[groups[i]]
		next.selfw[gi] += a.selfw[i]
		for k, j := range a.nbrs[i] {
			gj := id[groups[j]]
			if gi == gj {
				// Each internal edge is seen from both endpoints.
				next.selfw[gi] += a.wts[i][k] / 2
				continue
			}
			key := newEdgeKey(int64(gi), int64(gj))
			cross[key] += a.wts[i][k] / 2
		}
	}
	for key, w := range cross {
		u, v := int(key.lo), int(key.hi)
		next.nbrs[u] = append(next.nbrs[u], v)
		next.wts[u] = append(next.wts[u], w)
		next.nbrs[v] = append(next.nbrs[v], u)
		next.wts[v] = append(next.wts[v], w)
	}
	for i := 0; i < next.n; i++ {
		for _, w := range next.wts[i] {
			next.deg[i] += w
		}
		next.deg[i] += 2 * next.selfw[i]
		next.m2 += next.deg[i]
	}
	return next, id
}

// leidenPartition runs the multi-level move, refine, aggregate cycle.
func leidenPartition(a *adjacency, resolution float64, maxLevels int) []int {
	if a.n == 0 {
		return nil
	}
	if maxLevels <= 0 {
		maxLevels = 10
	}

	nodeOf := make([]int, a.n)
	assign := make([]int, a.n)
	for i := range nodeOf {
		nodeOf[i] = i
		assign[i] = i
	}

	cur := a
	for level := 0; level < maxLevels; level++ {
		comms := localMove(cur, resolution)
		for i := range assign {
			assign[i] = comms[nodeOf[i]]
		}
		if distinct(comms) == cur.n {
			break
		}
		refined := refine(cur, comms, resolution)
		next, id := aggregate(cur, refined)
		for i := range nodeOf {
			nodeOf[i] = id[refined[nodeOf[i]]]
		}
		if next.n == cur.n {
			break
		}
		cur = next
	}
	return assign
}

func distinct(assign []int) int {
	seen := make(map[int]bool, len(assign))
	for _, c := range assign {
		seen[c] = true
	}
	return len(seen)
}

// walktrapPartition agglomerates communities by short random-walk distance
// and returns the merge level with the highest modularity.
func walktrapPartition(a *adjacency, steps int) []int {
	if a.n == 0 {
		return nil
	}
	if steps <= 0 {
		steps = 4
	}

	// t-step walk distribution per node. Walks from isolated nodes stay put.
	dist := make([][]float64, a.n)
	for i := 0; i < a.n; i++ {
		v := make([]float64, a.n)
		v[i] = 1
		for s := 0; s < steps; s++ {
			nv := make([]float64, a.n)
			for u, p := range v {
				if p == 0 {
					continue
				}
				if a.deg[u] == 0 {
					nv[u] += p
					continue
				}
				for k, j := range a.nbrs[u] {
					nv[j] += p * a.wts[u][k] / a.deg[u]
				}
			}
			v = nv
		}
		dist[i] = v
	}

	comm := make([]int, a.n)
	size := make([]int, a.n)
	cdist := make([][]float64, a.n)
	alive := make([]bool, a.n)
	for i := 0; i < a.n; i++ {
		comm[i] = i
		size[i] = 1
		cdist[i] = append([]float64(nil), dist[i]...)
		alive[i] = true
	}

	adjacent := make(map[edgeKey]bool)
	for i := 0; i < a.n; i++ {
		for _, j := range a.nbrs[i] {
			if i != j {
				adjacent[newEdgeKey(int64(i), int64(j))] = true
			}
		}
	}
	walkDist := func(c1, c2 int) float64 {
		var r float64
		for k := 0; k < a.n; k++ {
			if a.deg[k] == 0 {
				continue
			}
			d := cdist[c1][k] - cdist[c2][k]
			r += d * d / a.deg[k]
		}
		return r
	}

	best := append([]int(nil), comm...)
	bestQ := modularityOf(a, comm, 1.0)

	for {
		mc1, mc2, minCost := -1, -1, math.Inf(1)
		for c1 := 0; c1 < a.n; c1++ {
			if !alive[c1] {
				continue
			}
			for c2 := c1 + 1; c2 < a.n; c2++ {
				if !alive[c2] || !adjacent[newEdgeKey(int64(c1), int64(c2))] {
					continue
				}
				cost := float64(size[c1]*size[c2]) / float64(size[c1]+size[c2]) * walkDist(c1, c2)
				if cost < minCost-1e-15 {
					mc1, mc2, minCost = c1, c2, cost
				}
			}
		}
		if mc1 < 0 {
			break
		}

		merged := make([]float64, a.n)
		for k := 0; k < a.n; k++ {
			merged[k] = (float64(size[mc1])*cdist[mc1][k] + float64(size[mc2])*cdist[mc2][k]) /
				float64(size[mc1]+size[mc2])
		}
		cdist[mc1] = merged
		size[mc1] += size[mc2]
		alive[mc2] = false
		for i := 0; i < a.n; i++ {
			if comm[i] == mc2 {
				comm[i] = mc1
			}
		}
		for c := 0; c < a.n; c++ {
			if alive[c] && c != mc1 && adjacent[newEdgeKey(int64(mc2), int64(c))] {
				adjacent[newEdgeKey(int64(mc1), int64(c))] = true
			}
		}

		if q := modularityOf(a, comm, 1.0); q > bestQ {
			bestQ = q
			best = append([]int(nil), comm...)
		}
	}
	return best
}

// Cluster runs community detection on the network and returns dense cluster
// assignments. Clusters smaller than the configured minimum are removed from
// the assignment map; modularity always describes the unfiltered partition.
func Cluster(g *GeneGraph, algo schemas.ClusterAlgorithm, cfg config.NetworkConfig) (schemas.ClusterResult, error) {
	result := schemas.ClusterResult{
		Assignments: make(map[string]int),
		Algorithm:   algo,
	}
	if g.NodeCount() == 0 {
		return result, nil
	}

	adj, symbols := newAdjacency(g)

	var assign []int
	switch algo {
	case schemas.AlgorithmLeiden:
		resolution := cfg.LeidenResolution
		if resolution <= 0 {
			resolution = 1.0
		}
		assign = leidenPartition(adj, resolution, cfg.LeidenIterations)
		result.Modularity = modularityOf(adj, assign, resolution)
	case schemas.AlgorithmLouvain:
		resolution := cfg.LouvainResolution
		if resolution <= 0 {
			resolution = 1.0
		}
		reduced := community.Modularize(g.Underlying(), resolution, nil)
		communities := reduced.Communities()
		assign = make([]int, adj.n)
		index := make(map[string]int, len(symbols))
		for i, s := range symbols {
			index[s] = i
		}
		for label, comm := range communities {
			for _, s := range g.nodeSymbols(comm) {
				assign[index[s]] = label
			}
		}
		result.Modularity = community.Q(g.Underlying(), communities, resolution)
	case schemas.AlgorithmWalktrap:
		assign = walktrapPartition(adj, cfg.WalktrapSteps)
		result.Modularity = modularityOf(adj, assign, 1.0)
	default:
		return result, &schemas.ValidationError{
			Field:  "algorithm",
			Reason: fmt.Sprintf("unknown clustering algorithm %q", algo),
		}
	}

	result.Assignments = canonicalAssignments(symbols, assign, cfg.MinClusterSize)
	return result, nil
}

// canonicalAssignments relabels clusters densely from 0, largest cluster
// first with the smallest member symbol breaking ties, and drops clusters
// below the minimum size.
func canonicalAssignments(symbols []string, assign []int, minSize int) map[string]int {
	members := make(map[int][]string)
	for i, s := range symbols {
		members[assign[i]] = append(members[assign[i]], s)
	}
	labels := make([]int, 0, len(members))
	for label, m := range members {
		sort.Strings(m)
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		mi, mj := members[labels[i]], members[labels[j]]
		if len(mi) != len(mj) {
			return len(mi) > len(mj)
		}
		return mi[0] < mj[0]
	})

	out := make(map[string]int)
	next := 0
	for _, label := range labels {
		m := members[label]
		if minSize > 0 && len(m) < minSize {
			continue
		}
		for _, s := range m {
			out[s] = next
		}
		next++
	}
	return out
}
