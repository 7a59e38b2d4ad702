package ops

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
	"github.com/23skdu/longbow-ndbuffer/internal/simd"
)

func (r *Registry) registerReductions() {
	r.mustRegister(Reduction, "sum", NewReduction("sum", sum))
	r.mustRegister(Reduction, "max", NewReduction("max", nonEmpty(floats.Max)))
	r.mustRegister(Reduction, "min", NewReduction("min", nonEmpty(floats.Min)))
	r.mustRegister(Reduction, "norm1", NewReduction("norm1", norm1))
	r.mustRegister(Reduction, "norm2", NewReduction("norm2", norm2))
	r.mustRegister(Reduction, "prod", NewReduction("prod", prod))
	r.mustRegister(Reduction, "std", NewReduction("std", nonEmpty(func(x []float64) float64 {
		return stat.StdDev(x, nil)
	})))
	r.mustRegister(Reduction, "var", NewReduction("var", nonEmpty(func(x []float64) float64 {
		return stat.Variance(x, nil)
	})))
	r.mustRegister(Reduction, "euclidean", NewPairwiseReduction("euclidean", pairwise(func(x, y []float64) float64 {
		return floats.Distance(x, y, 2)
	})))
	r.mustRegister(Reduction, "manhattan", NewPairwiseReduction("manhattan", pairwise(func(x, y []float64) float64 {
		return floats.Distance(x, y, 1)
	})))
	r.mustRegister(Reduction, "cosine", NewPairwiseReduction("cosine", pairwise(cosine)))
}

func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Inc: 1, Data: x}
}

func sum(x, _ []float64) (float64, error) {
	return floats.Sum(x), nil
}

func prod(x, _ []float64) (float64, error) {
	return floats.Prod(x), nil
}

func norm1(x, _ []float64) (float64, error) {
	if len(x) == 0 {
		return 0, nil
	}
	return blas64.Asum(vec(x)), nil
}

func norm2(x, _ []float64) (float64, error) {
	if len(x) == 0 {
		return 0, nil
	}
	return blas64.Nrm2(vec(x)), nil
}

// cosine is the cosine similarity of x and y.
func cosine(x, y []float64) float64 {
	return simd.DotProduct(x, y) / (floats.Norm(x, 2) * floats.Norm(y, 2))
}

func nonEmpty(fn func(x []float64) float64) ReduceFunc {
	return func(x, _ []float64) (float64, error) {
		if len(x) == 0 {
			return 0, fmt.Errorf("%w: reduction of an empty buffer", buffer.ErrInvalidArgument)
		}
		return fn(x), nil
	}
}

func pairwise(fn func(x, y []float64) float64) ReduceFunc {
	return func(x, y []float64) (float64, error) {
		if y == nil {
			return 0, fmt.Errorf("%w: pairwise reduction needs a second operand", buffer.ErrInvalidArgument)
		}
		if len(x) != len(y) {
			return 0, fmt.Errorf("%w: operand lengths differ (%d and %d)", buffer.ErrInvalidArgument, len(x), len(y))
		}
		return fn(x, y), nil
	}
}
