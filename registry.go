package deeptorch

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	costFunctions = make(map[string]func() CostFunction)
	optimizers    = make(map[string]func() Optimizer)
	penalties     = make(map[string]func(λ float64) Penalty)
)

// RegisterCostFunction makes a CostFunction available by name through NewCostFunction. It is
// typically called from the init function of the package defining the CostFunction.
func RegisterCostFunction(name string, f func() CostFunction) error {
	if f == nil {
		return NilArgError{"Constructor"}
	} else if _, ok := costFunctions[name]; ok {
		return errors.Wrapf(ErrRegisterTaken, "Cost function %q", name)
	} else if f() == nil {
		return errors.Wrapf(ErrRegisterNilReturn, "Cost function %q", name)
	}

	costFunctions[name] = f
	return nil
}

// NewCostFunction returns a new instance of the CostFunction registered with the given name
func NewCostFunction(name string) (CostFunction, error) {
	f, ok := costFunctions[name]
	if !ok {
		return nil, errors.Wrapf(ErrRegisterWrongType, "Cost function %q", name)
	}

	return f(), nil
}

// CostFunctions returns the names of all registered CostFunctions, sorted
func CostFunctions() []string {
	names := make([]string, 0, len(costFunctions))
	for s := range costFunctions {
		names = append(names, s)
	}

	sort.Strings(names)
	return names
}

// RegisterOptimizer makes an Optimizer available by name through NewOptimizer
func RegisterOptimizer(name string, f func() Optimizer) error {
	if f == nil {
		return NilArgError{"Constructor"}
	} else if _, ok := optimizers[name]; ok {
		return errors.Wrapf(ErrRegisterTaken, "Optimizer %q", name)
	} else if f() == nil {
		return errors.Wrapf(ErrRegisterNilReturn, "Optimizer %q", name)
	}

	optimizers[name] = f
	return nil
}

// NewOptimizer returns a new instance of the Optimizer registered with the given name
func NewOptimizer(name string) (Optimizer, error) {
	f, ok := optimizers[name]
	if !ok {
		return nil, errors.Wrapf(ErrRegisterWrongType, "Optimizer %q", name)
	}

	return f(), nil
}

// RegisterPenalty makes a Penalty available by name through NewPenalty. The constructor is given
// the strength of the penalty.
func RegisterPenalty(name string, f func(λ float64) Penalty) error {
	if f == nil {
		return NilArgError{"Constructor"}
	} else if _, ok := penalties[name]; ok {
		return errors.Wrapf(ErrRegisterTaken, "Penalty %q", name)
	} else if f(0) == nil {
		return errors.Wrapf(ErrRegisterNilReturn, "Penalty %q", name)
	}

	penalties[name] = f
	return nil
}

// NewPenalty returns a new instance of the Penalty registered with the given name
func NewPenalty(name string, λ float64) (Penalty, error) {
	f, ok := penalties[name]
	if !ok {
		return nil, errors.Wrapf(ErrRegisterWrongType, "Penalty %q", name)
	}

	return f(λ), nil
}
