// Package datasets provides in-memory implementations of deeptorch.DataSet, and loaders for the
// MAT text format and MNIST.
package datasets

import (
	bs "github.com/rbhambriiit/deeptorch"
)

// Memory is a DataSet held entirely in memory
type Memory struct {
	examples []*bs.Example
}

// NewMemory returns a Memory holding the given Examples, which are not copied
func NewMemory(examples []*bs.Example) *Memory {
	return &Memory{examples}
}

func (m *Memory) Len() int {
	return len(m.examples)
}

func (m *Memory) Example(i int) *bs.Example {
	return m.examples[i]
}

// Append adds Examples to the end of the set
func (m *Memory) Append(exs ...*bs.Example) {
	m.examples = append(m.examples, exs...)
}

// Subset is a contiguous range of another DataSet
type Subset struct {
	data       bs.DataSet
	start, end int
}

// NewSubset returns the Examples of 'data' in [start, end), clamped to its length
func NewSubset(data bs.DataSet, start, end int) *Subset {
	if end > data.Len() {
		end = data.Len()
	}
	if start > end {
		start = end
	}

	return &Subset{data, start, end}
}

func (s *Subset) Len() int {
	return s.end - s.start
}

func (s *Subset) Example(i int) *bs.Example {
	return s.data.Example(s.start + i)
}
