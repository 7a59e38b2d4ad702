package ops

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/23skdu/longbow-ndbuffer/internal/simd"
)

// stabilizeCutoff is log of the smallest normal float32.
var stabilizeCutoff = math.Log(1.1755e-38)

func (r *Registry) registerTransforms() {
	mapped := map[string]func(float64) float64{
		"abs":      math.Abs,
		"acos":     math.Acos,
		"asin":     math.Asin,
		"atan":     math.Atan,
		"ceil":     math.Ceil,
		"cos":      math.Cos,
		"exp":      math.Exp,
		"floor":    math.Floor,
		"identity": func(x float64) float64 { return x },
		"log":      math.Log,
		"negative": func(x float64) float64 { return -x },
		"round":    math.Round,
		"sign":     sign,
		"sin":      math.Sin,
		"sqrt":     math.Sqrt,
		"tanh":     math.Tanh,
	}
	for name, fn := range mapped {
		r.mustRegister(Transform, name, NewTransform(name, mapTransform(fn), nil))
	}

	r.mustRegister(Transform, "relu", NewTransform("relu", relu, map[string]float64{ParamThreshold: 0}))
	r.mustRegister(Transform, "pow", NewTransform("pow", pow, map[string]float64{ParamExponent: 2}))
	r.mustRegister(Transform, "stabilize", NewTransform("stabilize", stabilize, map[string]float64{ParamBound: 1}))
	r.mustRegister(Transform, "hardtanh", NewTransform("hardtanh", func(dst, src []float64, _ Operation) {
		simd.Clamp(dst, src, -1, 1)
	}, nil))
	r.mustRegister(Transform, "sigmoid", NewTransform("sigmoid", func(dst, src []float64, _ Operation) {
		simd.Sigmoid(dst, src)
	}, nil))
	r.mustRegister(Transform, "softmax", NewTransform("softmax", func(dst, src []float64, _ Operation) {
		simd.Softmax(dst, src)
	}, nil))
	r.mustRegister(Transform, "maxout", NewTransform("maxout", maxout, nil))
}

func mapTransform(fn func(float64) float64) TransformFunc {
	return func(dst, src []float64, _ Operation) {
		simd.Map(dst, src, fn)
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return x
	}
}

func relu(dst, src []float64, op Operation) {
	t, _ := op.Param(ParamThreshold)
	simd.Threshold(dst, src, t)
}

func pow(dst, src []float64, op Operation) {
	p, _ := op.Param(ParamExponent)
	simd.Map(dst, src, func(x float64) float64 {
		return math.Pow(x, p)
	})
}

// stabilize clamps x so that exp(k*x) stays within float32 normal range.
func stabilize(dst, src []float64, op Operation) {
	k, _ := op.Param(ParamBound)
	if k == 0 {
		copy(dst, src)
		return
	}
	simd.Map(dst, src, func(x float64) float64 {
		switch {
		case x*k > -stabilizeCutoff:
			return -stabilizeCutoff / k
		case x*k < stabilizeCutoff:
			return stabilizeCutoff / k
		default:
			return x
		}
	})
}

// maxout treats the whole buffer as one group and writes its maximum to every element.
func maxout(dst, src []float64, _ Operation) {
	if len(src) == 0 {
		return
	}
	simd.Broadcast(dst, floats.Max(src))
}
