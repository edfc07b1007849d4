package initializers

import (
	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// ByName returns the Initializer with the given name: one of "fanin", "lecun", "he", "xavier" or
// "glorot". The empty string gives FanIn.
func ByName(name string) (bs.Initializer, error) {
	switch name {
	case "", "fanin":
		return FanIn(), nil
	case "lecun":
		return LeCun(), nil
	case "he":
		return He(), nil
	case "xavier", "glorot":
		return Xavier(), nil
	}

	return nil, errors.Wrapf(bs.ErrRegisterWrongType, "Initializer %q", name)
}
