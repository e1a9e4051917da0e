// Package graph implements the directed entity relationship graph.
package graph

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pmll/casefile/internal/model"
)

// RelInferred labels edges added by InferRelationships.
const RelInferred = "inferred"

const exportHeader = "Source,Target,Relation,Confidence,Timestamp,Source Metadata\n"

const exportMetadata = "Generated Relationship"

type pair struct{ src, dst string }

type edge struct {
	relation   string
	confidence float64
}

// Graph is a directed graph over entity labels. Edges are keyed by the
// ordered (source, target) pair, so a second relation between the same
// pair replaces the first one's attributes.
type Graph struct {
	mu    sync.RWMutex
	nodes []string
	index map[string]int
	succ  map[string][]string
	edges map[pair]edge
	order []pair
	rng   *rand.Rand
	now   func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithRand sets the random source used by InferRelationships.
func WithRand(r *rand.Rand) Option {
	return func(g *Graph) { g.rng = r }
}

// WithClock sets the clock used to stamp exports.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		index: make(map[string]int),
		succ:  make(map[string][]string),
		edges: make(map[pair]edge),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

func (g *Graph) addNode(n string) {
	if _, ok := g.index[n]; ok {
		return
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// AddRelation inserts or overwrites the edge source→target. Confidence is
// stored as given.
func (g *Graph) AddRelation(source, target, relation string, confidence float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addRelationLocked(source, target, relation, confidence)
}

func (g *Graph) addRelationLocked(source, target, relation string, confidence float64) {
	g.addNode(source)
	g.addNode(target)

	k := pair{source, target}
	if _, ok := g.edges[k]; !ok {
		g.order = append(g.order, k)
		g.succ[source] = append(g.succ[source], target)
	}
	g.edges[k] = edge{relation: relation, confidence: confidence}
}

// Relation returns the edge source→target if present.
func (g *Graph) Relation(source, target string) (model.Relation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[pair{source, target}]
	if !ok {
		return model.Relation{}, false
	}
	return model.Relation{Source: source, Target: target, Relation: e.relation, Confidence: e.confidence}, true
}

// Relations returns every edge in insertion order.
func (g *Graph) Relations() []model.Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]model.Relation, 0, len(g.order))
	for _, k := range g.order {
		e := g.edges[k]
		out = append(out, model.Relation{Source: k.src, Target: k.dst, Relation: e.relation, Confidence: e.confidence})
	}
	return out
}

// Nodes returns entity labels in insertion order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.nodes...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ShortestPath returns a minimum-edge-count path from start to end, ignoring
// confidence. It returns an empty slice when either node is absent or end is
// unreachable.
func (g *Graph) ShortestPath(start, end string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.index[start]; !ok {
		return []string{}
	}
	if _, ok := g.index[end]; !ok {
		return []string{}
	}
	if start == end {
		return []string{start}
	}

	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.succ[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == end {
				return walkBack(prev, start, end)
			}
			queue = append(queue, next)
		}
	}
	return []string{}
}

func walkBack(prev map[string]string, start, end string) []string {
	var path []string
	for n := end; n != start; n = prev[n] {
		path = append(path, n)
	}
	path = append(path, start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// InferRelationships adds count synthetic "inferred" edges between distinct
// random nodes, with confidence uniform in [0.6, 0.9]. When count <= 0 a
// count in 1..3 is drawn. Graphs with fewer than two nodes are unchanged.
func (g *Graph) InferRelationships(count int) []model.Relation {
	g.mu.Lock()
	defer g.mu.Unlock()

	if count <= 0 {
		count = g.rng.Intn(3) + 1
	}
	n := len(g.nodes)
	if n < 2 {
		return nil
	}

	out := make([]model.Relation, 0, count)
	for i := 0; i < count; i++ {
		si := g.rng.Intn(n)
		ti := g.rng.Intn(n - 1)
		if ti >= si {
			ti++
		}
		r := model.Relation{
			Source:     g.nodes[si],
			Target:     g.nodes[ti],
			Relation:   RelInferred,
			Confidence: 0.6 + g.rng.Float64()*0.3,
		}
		g.addRelationLocked(r.Source, r.Target, r.Relation, r.Confidence)
		out = append(out, r)
	}
	return out
}

// CentralityRanking returns degree centrality per node, highest first. Ties
// keep node insertion order.
func (g *Graph) CentralityRanking() []model.Centrality {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.nodes)
	out := make([]model.Centrality, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = model.Centrality{Entity: g.nodes[0], Score: 1}
		return out
	}

	degree := make(map[string]int, n)
	for k := range g.edges {
		degree[k.src]++
		degree[k.dst]++
	}
	norm := float64(n - 1)
	for i, node := range g.nodes {
		out[i] = model.Centrality{Entity: node, Score: float64(degree[node]) / norm}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Export writes every edge as an unescaped comma-separated row. The
// timestamp column is the export time, not the edge creation time.
func (g *Graph) Export(w io.Writer) error {
	rels := g.Relations()
	ts := g.now().Format(time.RFC3339)

	if _, err := io.WriteString(w, exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rels {
		_, err := fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s\n",
			r.Source, r.Target, r.Relation,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			ts, exportMetadata)
		if err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}
