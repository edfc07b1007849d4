package deeptorch

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the records written by WriteGroups. Each group is a length-prefixed message:
//
//	group { 1: name (string); 2: block (message, repeated) }
//	block { 1: name (string); 2: values (packed fixed64) }
const (
	groupName  protowire.Number = 1
	groupBlock protowire.Number = 2

	blockName   protowire.Number = 1
	blockValues protowire.Number = 2
)

// WriteGroups writes the values of each group to 'w', in order. Values are stored as their exact
// IEEE-754 bits, so reading them back with ReadGroups is lossless.
func WriteGroups(w io.Writer, groups []*ParameterGroup) error {
	for _, g := range groups {
		rec := appendGroup(nil, g)

		if _, err := w.Write(protowire.AppendVarint(nil, uint64(len(rec)))); err != nil {
			return errors.Wrapf(err, "Writing length of group %q failed\n", g.name)
		} else if _, err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "Writing group %q failed\n", g.name)
		}
	}

	return nil
}

func appendGroup(b []byte, g *ParameterGroup) []byte {
	b = protowire.AppendTag(b, groupName, protowire.BytesType)
	b = protowire.AppendString(b, g.name)

	for _, blk := range g.blocks {
		var m []byte
		m = protowire.AppendTag(m, blockName, protowire.BytesType)
		m = protowire.AppendString(m, blk.Name)

		packed := make([]byte, 0, 8*len(blk.Values))
		for _, v := range blk.Values {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}

		m = protowire.AppendTag(m, blockValues, protowire.BytesType)
		m = protowire.AppendBytes(m, packed)

		b = protowire.AppendTag(b, groupBlock, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	return b
}

// ReadGroups reads values written by WriteGroups into the given groups, which must have the same
// names, Blocks, and sizes, in the same order. The values are copied into the existing Blocks, so
// any views of them remain valid.
//
// If ReadGroups returns an error, none of the groups will have been changed.
func ReadGroups(r io.Reader, groups []*ParameterGroup) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "Reading parameters failed\n")
	}

	// decode everything before touching any group
	decoded := make([][][]float64, len(groups))
	for i, g := range groups {
		size, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "Reading length of group %q failed\n", g.name)
		}

		data = data[n:]
		if uint64(len(data)) < size {
			return errors.Wrapf(io.ErrUnexpectedEOF, "Reading group %q failed\n", g.name)
		}

		if decoded[i], err = consumeGroup(data[:size], g); err != nil {
			return errors.Wrapf(err, "Decoding group %q failed\n", g.name)
		}

		data = data[size:]
	}

	if len(data) != 0 {
		return errors.Errorf("%d unexpected trailing bytes after last group", len(data))
	}

	for i, g := range groups {
		for j, blk := range g.blocks {
			copy(blk.Values, decoded[i][j])
		}
	}

	return nil
}

func consumeGroup(b []byte, g *ParameterGroup) ([][]float64, error) {
	var values [][]float64

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			return nil, errors.Errorf("Field %d has unexpected wire type %d", num, typ)
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case groupName:
			if string(v) != g.name {
				return nil, errors.Errorf("Group name %q does not match %q", v, g.name)
			}
		case groupBlock:
			if len(values) >= len(g.blocks) {
				return nil, errors.Errorf("More blocks than the %d expected", len(g.blocks))
			}

			vals, err := consumeBlock(v, g.blocks[len(values)])
			if err != nil {
				return nil, errors.Wrapf(err, "Decoding block %d failed\n", len(values))
			}

			values = append(values, vals)
		default:
			return nil, errors.Errorf("Unknown field %d", num)
		}
	}

	if len(values) != len(g.blocks) {
		return nil, SizeMismatchError{"Blocks", len(values), len(g.blocks)}
	}

	return values, nil
}

func consumeBlock(b []byte, blk *Block) ([]float64, error) {
	var values []float64
	var named bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		} else if typ != protowire.BytesType {
			return nil, errors.Errorf("Field %d has unexpected wire type %d", num, typ)
		}
		b = b[n:]

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case blockName:
			if string(v) != blk.Name {
				return nil, errors.Errorf("Block name %q does not match %q", v, blk.Name)
			}
			named = true
		case blockValues:
			if len(v) != 8*len(blk.Values) {
				return nil, SizeMismatchError{"Values of block " + blk.Name, len(v) / 8, len(blk.Values)}
			}

			values = make([]float64, len(blk.Values))
			for i := range values {
				bits, n := protowire.ConsumeFixed64(v)
				if n < 0 {
					return nil, protowire.ParseError(n)
				}

				values[i] = math.Float64frombits(bits)
				v = v[n:]
			}
		default:
			return nil, errors.Errorf("Unknown field %d", num)
		}
	}

	if !named {
		return nil, errors.Errorf("Block %q is missing its name", blk.Name)
	} else if values == nil && len(blk.Values) != 0 {
		return nil, errors.Errorf("Block %q is missing its values", blk.Name)
	}

	if values == nil {
		values = []float64{}
	}

	return values, nil
}
