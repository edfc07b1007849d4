package sae

import (
	"io"
	"os"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// Save writes every parameter of the model to 'w': encoders first, then decoders, then the
// outputer. A tied decoder only has its own biases written, since its weights are its encoder's.
func (m *Model) Save(w io.Writer) error {
	if err := bs.WriteGroups(w, m.Params()); err != nil {
		return errors.Wrapf(err, "Saving model failed\n")
	}

	return nil
}

// Load reads parameters written by Save into the model, which must have the same Config. If Load
// fails, the model is unchanged.
func (m *Model) Load(r io.Reader) error {
	if err := bs.ReadGroups(r, m.Params()); err != nil {
		return errors.Wrapf(err, "Loading model failed\n")
	}

	return nil
}

// SaveFile calls Save on a newly created file at 'path'
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create file %q\n", path)
	}

	if err = m.Save(f); err != nil {
		f.Close()
		return err
	}

	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close file %q\n", path)
	}

	return nil
}

// LoadFile calls Load with the file at 'path'
func (m *Model) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to open file %q\n", path)
	}

	defer f.Close()
	return m.Load(f)
}
