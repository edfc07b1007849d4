package deeptorch

import (
	"gonum.org/v1/gonum/floats"
)

// segments describes how a single vector is split into consecutive parts. Each entry is the
// cumulative size of all parts up to and including that one.
type segments []int

func newSegments(sizes []int) segments {
	s := make(segments, len(sizes))
	var sum int
	for i, n := range sizes {
		sum += n
		s[i] = sum
	}

	return s
}

// Returns the total size of all parts
func (s segments) size() int {
	if len(s) == 0 {
		return 0
	}

	return s[len(s)-1]
}

// Returns the part of 'vals' corresponding to index 'i'
func (s segments) of(vals []float64, i int) []float64 {
	start := 0
	if i > 0 {
		start = s[i-1]
	}

	return vals[start:s[i]]
}

// Returns the number of values in the group
func (ng *nodeGroup) size() int {
	return ng.sumVals.size()
}

// Returns the number of nodes in the group
func num(ng *nodeGroup) int {
	return len(ng.nodes)
}

// This method is self-explanatory
func (ng *nodeGroup) add(nodes ...*Node) {
	ng.nodes = append(ng.nodes, nodes...)

	for _, n := range nodes {
		ng.sumVals = append(ng.sumVals, ng.size()+n.Size())
	}
}

func (ng *nodeGroup) sizes() []int {
	s := make([]int, len(ng.nodes))
	for i, n := range ng.nodes {
		s[i] = n.Size()
	}

	return s
}

// Returns the values of the group. When there is only one member, its values are returned
// directly; otherwise they are copied into 'buf', which must have length ng.size().
func (ng *nodeGroup) getValues(buf []float64) []float64 {
	if len(ng.nodes) == 1 {
		return ng.nodes[0].Values()
	}

	for i, n := range ng.nodes {
		copy(ng.sumVals.of(buf, i), n.Values())
	}

	return buf
}

// Adds each segment of 'ds' to the deltas of the corresponding member
func (ng *nodeGroup) addDeltas(ds []float64) {
	for i, n := range ng.nodes {
		floats.Add(n.deltas, ng.sumVals.of(ds, i))
	}
}
