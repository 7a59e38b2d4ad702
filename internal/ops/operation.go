package ops

import "maps"

// Array is the opaque operand handle an operation is bound to. Both host and
// device buffers satisfy it.
type Array interface {
	Length() int
}

// Parameter keys carried by the built-in transforms.
const (
	ParamExponent  = "exponent"
	ParamBound     = "bound"
	ParamThreshold = "threshold"
)

// ReduceFunc computes a reduction over x, and y when the reduction is pairwise.
// Both slices already have the operation's element count.
type ReduceFunc func(x, y []float64) (float64, error)

// TransformFunc writes the transform of src into dst. op carries the parameters.
type TransformFunc func(dst, src []float64, op Operation)

// Operation is a named operation bound to its operands. It is a value object:
// binding different operands or parameters produces a new Operation.
type Operation struct {
	Name   string
	Family Family
	Arity  Arity

	X, Y, Z Array
	// N is the explicit element count, 0 when the operation covers all of X.
	N int

	params    map[string]float64
	pairwise  bool
	reduce    ReduceFunc
	transform TransformFunc
}

// Param returns the named auxiliary parameter.
func (o Operation) Param(key string) (float64, bool) {
	v, ok := o.params[key]
	return v, ok
}

// Params returns a copy of all auxiliary parameters.
func (o Operation) Params() map[string]float64 {
	return maps.Clone(o.params)
}

// WithParam returns a copy of o with key set to v.
func (o Operation) WithParam(key string, v float64) Operation {
	params := make(map[string]float64, len(o.params)+1)
	maps.Copy(params, o.params)
	params[key] = v
	o.params = params
	return o
}

// Pairwise reports whether the operation reduces X against a reference Y of
// the same length.
func (o Operation) Pairwise() bool { return o.pairwise }

// Output returns the operand results are written to, or nil when a reduction
// only returns its value.
func (o Operation) Output() Array {
	switch o.Arity {
	case Unary:
		if o.Family == Transform {
			return o.X
		}
	case UnaryWithOutput:
		return o.Y
	case BinaryWithOutputAndLength:
		return o.Z
	}
	return nil
}

// Binding is what the registry hands a Factory: the operands in call order
// and the arity they select.
type Binding struct {
	Arity   Arity
	X, Y, Z Array
	N       int
}

// Factory builds the operation registered under a name for a binding.
type Factory func(b Binding) Operation

func bind(name string, b Binding) Operation {
	return Operation{Name: name, Arity: b.Arity, X: b.X, Y: b.Y, Z: b.Z, N: b.N}
}

// NewReduction returns a Factory for a reduction implemented by fn.
func NewReduction(name string, fn ReduceFunc) Factory {
	return func(b Binding) Operation {
		op := bind(name, b)
		op.reduce = fn
		return op
	}
}

// NewPairwiseReduction is NewReduction for reductions of x against y. When
// bound to a reference y they also carry x's length as the element count.
func NewPairwiseReduction(name string, fn ReduceFunc) Factory {
	return func(b Binding) Operation {
		if b.Arity == Binary {
			b.N = b.X.Length()
		}
		op := bind(name, b)
		op.reduce = fn
		op.pairwise = true
		return op
	}
}

// NewTransform returns a Factory for a transform implemented by fn. params are
// fixed values attached to every binding; callers may override them with
// WithParam.
func NewTransform(name string, fn TransformFunc, params map[string]float64) Factory {
	return func(b Binding) Operation {
		op := bind(name, b)
		op.transform = fn
		op.params = maps.Clone(params)
		return op
	}
}
