package datasets

import (
	"bytes"
	"strings"
	"testing"

	bs "github.com/rbhambriiit/deeptorch"
)

const mat = `3 4
0.5 1 0 2
0 0.25 1 0
1 1 1 1
`

func TestLoadMat(t *testing.T) {
	data, err := LoadMat(strings.NewReader(mat), 3, 3, 0)
	if err != nil {
		t.Fatal(err)
	}

	if data.Len() != 3 {
		t.Fatalf("loaded %d examples, expected 3", data.Len())
	}

	ex := data.Example(1)
	if ex.Inputs[1] != 0.25 || ex.Inputs[2] != 1 {
		t.Errorf("inputs %v, expected [0 0.25 1]", ex.Inputs)
	}

	classes := []int{2, 0, 1}
	for i, c := range classes {
		ts := data.Example(i).Targets
		for j, v := range ts {
			if want := bs.OneHot(c, 3)[j]; v != want {
				t.Errorf("example %d: targets %v, expected class %d", i, ts, c)
				break
			}
		}
	}

	limited, err := LoadMat(strings.NewReader(mat), 3, 3, 2)
	if err != nil {
		t.Fatal(err)
	} else if limited.Len() != 2 {
		t.Errorf("loaded %d examples with a limit of 2", limited.Len())
	}
}

func TestLoadMatErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no header", ""},
		{"bad header", "3 x\n"},
		{"wrong columns", "1 3\n1 2 0\n"},
		{"truncated", "2 4\n1 2 3 0\n1 2\n"},
		{"class out of range", "1 4\n1 2 3 3\n"},
		{"fractional class", "1 4\n1 2 3 0.5\n"},
		{"not a number", "1 4\n1 two 3 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMat(strings.NewReader(tt.in), 3, 3, 0); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestWriteMat(t *testing.T) {
	data, err := LoadMat(strings.NewReader(mat), 3, 3, 0)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMat(&buf, data); err != nil {
		t.Fatal(err)
	}

	if buf.String() != mat {
		t.Errorf("got:\n%s\nexpected:\n%s", buf.String(), mat)
	}
}

func TestSubset(t *testing.T) {
	data, err := LoadMat(strings.NewReader(mat), 3, 3, 0)
	if err != nil {
		t.Fatal(err)
	}

	s := NewSubset(data, 1, 10)
	if s.Len() != 2 {
		t.Fatalf("subset has %d examples, expected 2", s.Len())
	} else if s.Example(0) != data.Example(1) {
		t.Errorf("subset starts at the wrong example")
	}

	if NewSubset(data, 5, 10).Len() != 0 {
		t.Errorf("subset past the end should be empty")
	}

	m := NewMemory(nil)
	m.Append(data.Example(0), data.Example(2))
	if m.Len() != 2 || m.Example(1) != data.Example(2) {
		t.Errorf("Append did not add the examples in order")
	}
}

func TestLoadCSV(t *testing.T) {
	const in = "2,0,255,51\n0, 102,0,255\n"

	data, err := LoadCSV(strings.NewReader(in), 3, 3, 255, 0)
	if err != nil {
		t.Fatal(err)
	} else if data.Len() != 2 {
		t.Fatalf("loaded %d examples, expected 2", data.Len())
	}

	want := []float64{0.4, 0, 1}
	for i, v := range data.Example(1).Inputs {
		if v != want[i] {
			t.Errorf("input %d: %v, expected %v", i, v, want[i])
		}
	}

	if ts := data.Example(0).Targets; ts[2] != 1 || ts[0] != 0 {
		t.Errorf("targets %v, expected class 2", ts)
	}

	if limited, err := LoadCSV(strings.NewReader(in), 3, 3, 255, 1); err != nil {
		t.Fatal(err)
	} else if limited.Len() != 1 {
		t.Errorf("loaded %d examples with a limit of 1", limited.Len())
	}

	bad := []string{
		"3,0,0,0\n",
		"x,0,0,0\n",
		"1,0,0\n",
		"1,0,y,0\n",
	}

	for _, b := range bad {
		if _, err := LoadCSV(strings.NewReader(b), 3, 3, 255, 0); err == nil {
			t.Errorf("expected error for %q", b)
		}
	}
}
