// Package ops resolves operation names to bound operation objects and runs
// them on host buffers.
package ops

// Family groups operations by what they produce.
type Family int

const (
	// Reduction collapses one or two buffers to a scalar.
	Reduction Family = iota
	// Transform applies a function to each element.
	Transform
	// Loss compares predictions with labels.
	Loss
)

func (f Family) String() string {
	switch f {
	case Reduction:
		return "reduction"
	case Transform:
		return "transform"
	case Loss:
		return "loss"
	default:
		return "unknown"
	}
}

// Arity records which operands an operation was bound to.
type Arity int

const (
	// Unary binds x alone. Transforms write back into x.
	Unary Arity = iota
	// UnaryWithOutput binds input x and output y.
	UnaryWithOutput
	// Binary binds x against a reference y.
	Binary
	// BinaryWithOutputAndLength binds x, a secondary operand y, output z and
	// an element count.
	BinaryWithOutputAndLength
)

func (a Arity) String() string {
	switch a {
	case Unary:
		return "unary"
	case UnaryWithOutput:
		return "unary-with-output"
	case Binary:
		return "binary"
	case BinaryWithOutputAndLength:
		return "binary-with-output-and-length"
	default:
		return "unknown"
	}
}
