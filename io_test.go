package deeptorch_test

import (
	"bytes"
	"math"
	"testing"

	bs "github.com/rbhambriiit/deeptorch"
)

func makeGroups() []*bs.ParameterGroup {
	a := bs.NewParameterGroup("a")
	w := a.AddBlock("weights", 4)
	b := a.AddBlock("biases", 2)
	copy(w.Values, []float64{1.5, -2.25, math.Pi, 1e-300})
	copy(b.Values, []float64{math.Inf(-1), math.SmallestNonzeroFloat64})

	c := bs.NewParameterGroup("c")
	copy(c.AddBlock("biases", 3).Values, []float64{0.1, 0.2, 0.3})

	return []*bs.ParameterGroup{a, c}
}

func TestWriteReadGroups(t *testing.T) {
	src := makeGroups()

	var buf bytes.Buffer
	if err := bs.WriteGroups(&buf, src); err != nil {
		t.Fatal(err)
	}

	dst := makeGroups()
	for _, g := range dst {
		for _, b := range g.Blocks() {
			for i := range b.Values {
				b.Values[i] = 0
			}
		}
	}

	if err := bs.ReadGroups(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatal(err)
	}

	for i, g := range src {
		for j, b := range g.Blocks() {
			got := dst[i].Blocks()[j].Values
			for k, v := range b.Values {
				if math.Float64bits(v) != math.Float64bits(got[k]) {
					t.Errorf("group %s block %s value %d: got %v, expected %v", g, b.Name, k, got[k], v)
				}
			}
		}
	}
}

func TestReadGroupsAtomic(t *testing.T) {
	var buf bytes.Buffer
	if err := bs.WriteGroups(&buf, makeGroups()); err != nil {
		t.Fatal(err)
	}

	// same first group, but the second has a different size
	a := bs.NewParameterGroup("a")
	a.AddBlock("weights", 4)
	a.AddBlock("biases", 2)
	c := bs.NewParameterGroup("c")
	c.AddBlock("biases", 5)

	if err := bs.ReadGroups(bytes.NewReader(buf.Bytes()), []*bs.ParameterGroup{a, c}); err == nil {
		t.Fatal("expected error reading into groups of a different size")
	}

	for _, v := range a.Blocks()[0].Values {
		if v != 0 {
			t.Fatalf("first group was changed by a failed read")
		}
	}

	if err := bs.ReadGroups(bytes.NewReader(buf.Bytes()[:buf.Len()-1]), makeGroups()); err == nil {
		t.Errorf("expected error reading truncated data")
	}
}

func TestCountParamsUnique(t *testing.T) {
	gs := makeGroups()
	dup := []*bs.ParameterGroup{gs[0], gs[1], gs[0]}

	if n := bs.CountParams(dup); n != 9 {
		t.Errorf("CountParams = %d, expected 9", n)
	}

	if u := bs.Unique(dup, gs); len(u) != 2 {
		t.Errorf("Unique returned %d groups, expected 2", len(u))
	}
}
