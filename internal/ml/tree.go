package ml

import (
	"math"
	"math/rand"
)

// Node is one split or leaf. Rows with x[Feature] < Threshold go Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Cover     float64
	Gain      float64
}

// IsLeaf reports whether the node has no children
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a flat binary regression tree; Nodes[0] is the root
type Tree struct {
	Nodes []Node
}

// Predict walks x down to a leaf
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// ExpectedValue is the cover-weighted mean leaf value
func (t *Tree) ExpectedValue() float64 {
	return t.expected(0)
}

func (t *Tree) expected(i int) float64 {
	n := t.Nodes[i]
	if n.IsLeaf() {
		return n.Value
	}
	l, r := t.Nodes[n.Left], t.Nodes[n.Right]
	if n.Cover == 0 {
		return 0
	}
	return (l.Cover*t.expected(n.Left) + r.Cover*t.expected(n.Right)) / n.Cover
}

// Leaves counts terminal nodes
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// Depth is the longest root-to-leaf edge count
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

type growth int

const (
	depthWise growth = iota
	leafWise
)

type treeConfig struct {
	growth          growth
	maxDepth        int
	maxLeaves       int
	lambda          float64
	gamma           float64
	minChildWeight  float64
	minChildSamples int
	learningRate    float64
	featuresPerNode int
}

type split struct {
	valid   bool
	feature int
	bin     int
	gain    float64
	gl, hl  float64
}

type candidate struct {
	node  int
	rows  []int
	depth int
	g, h  float64
	split split
}

// builder grows one tree from gradients and hessians over a binned matrix
type builder struct {
	m        *matrix
	grad     []float64
	hess     []float64
	cfg      treeConfig
	features []int
	rng      *rand.Rand
}

func (b *builder) build(rows []int) *Tree {
	t := &Tree{}
	g, h := b.sums(rows)
	t.Nodes = append(t.Nodes, b.leaf(g, h))

	open := []*candidate{b.evaluate(0, rows, 0, g, h)}
	leaves := 1
	for len(open) > 0 {
		var c *candidate
		if b.cfg.growth == leafWise {
			if b.cfg.maxLeaves > 0 && leaves >= b.cfg.maxLeaves {
				break
			}
			best := 0
			for i := range open {
				if open[i].split.valid && (!open[best].split.valid || open[i].split.gain > open[best].split.gain) {
					best = i
				}
			}
			c = open[best]
			if !c.split.valid {
				break
			}
			open = append(open[:best], open[best+1:]...)
		} else {
			c = open[0]
			open = open[1:]
			if !c.split.valid {
				continue
			}
		}

		left, right := b.partition(c.rows, c.split)
		gl, hl := c.split.gl, c.split.hl
		gr, hr := c.g-gl, c.h-hl

		li := len(t.Nodes)
		t.Nodes = append(t.Nodes, b.leaf(gl, hl), b.leaf(gr, hr))
		ri := li + 1

		n := &t.Nodes[c.node]
		n.Feature = c.split.feature
		n.Threshold = b.m.cuts[c.split.feature][c.split.bin]
		n.Left = li
		n.Right = ri
		n.Gain = c.split.gain
		leaves++

		open = append(open,
			b.evaluate(li, left, c.depth+1, gl, hl),
			b.evaluate(ri, right, c.depth+1, gr, hr),
		)
	}
	return t
}

func (b *builder) leaf(g, h float64) Node {
	value := 0.0
	if h+b.cfg.lambda > 0 {
		value = -g / (h + b.cfg.lambda) * b.cfg.learningRate
	}
	return Node{Feature: -1, Left: -1, Right: -1, Value: value, Cover: h}
}

func (b *builder) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

func (b *builder) score(g, h float64) float64 {
	return g * g / (h + b.cfg.lambda)
}

func (b *builder) evaluate(node int, rows []int, depth int, g, h float64) *candidate {
	c := &candidate{node: node, rows: rows, depth: depth, g: g, h: h}
	if b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth {
		return c
	}
	minSamples := max(b.cfg.minChildSamples, 1)
	if len(rows) < 2*minSamples {
		return c
	}

	features := b.features
	if k := b.cfg.featuresPerNode; k > 0 && k < len(features) {
		perm := b.rng.Perm(len(features))
		features = make([]int, k)
		for i := range features {
			features[i] = b.features[perm[i]]
		}
	}

	parent := b.score(g, h)
	for _, f := range features {
		cuts := b.m.cuts[f]
		if len(cuts) == 0 {
			continue
		}
		nbins := len(cuts) + 1
		hg := make([]float64, nbins)
		hh := make([]float64, nbins)
		hc := make([]int, nbins)
		bins := b.m.bins[f]
		for _, r := range rows {
			bin := bins[r]
			hg[bin] += b.grad[r]
			hh[bin] += b.hess[r]
			hc[bin]++
		}

		var gl, hl float64
		var cl int
		for k := 0; k < nbins-1; k++ {
			gl += hg[k]
			hl += hh[k]
			cl += hc[k]
			cr := len(rows) - cl
			hr := h - hl
			if cl < minSamples || cr < minSamples {
				continue
			}
			if hl < b.cfg.minChildWeight || hr < b.cfg.minChildWeight {
				continue
			}
			gain := b.score(gl, hl) + b.score(g-gl, hr) - parent
			if gain <= b.cfg.gamma || gain <= 1e-12 {
				continue
			}
			if !c.split.valid || gain > c.split.gain {
				c.split = split{valid: true, feature: f, bin: k, gain: gain, gl: gl, hl: hl}
			}
		}
	}
	return c
}

func (b *builder) partition(rows []int, s split) (left, right []int) {
	bins := b.m.bins[s.feature]
	for _, r := range rows {
		if int(bins[r]) <= s.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
