package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

var (
	reductionNames = []string{"cosine", "euclidean", "manhattan", "max", "min", "norm1", "norm2", "prod", "std", "sum", "var"}
	transformNames = []string{
		"abs", "acos", "asin", "atan", "ceil", "cos", "exp", "floor", "hardtanh", "identity", "log",
		"maxout", "negative", "pow", "relu", "round", "sigmoid", "sign", "sin", "softmax", "sqrt",
		"stabilize", "tanh",
	}
)

func vector(n int) *buffer.HostBuffer {
	b, _ := buffer.New(buffer.Float32, n)
	return b
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, reductionNames, r.Names(Reduction))
	assert.Equal(t, transformNames, r.Names(Transform))
	assert.Empty(t, r.Names(Loss))
}

func TestRegistry_ResolveEveryName(t *testing.T) {
	r := NewRegistry()
	x, y, z := vector(4), vector(4), vector(4)

	cases := []struct {
		operands []Array
		arity    map[Family]Arity
	}{
		{[]Array{x}, map[Family]Arity{Reduction: Unary, Transform: Unary}},
		{[]Array{x, y}, map[Family]Arity{Reduction: Binary, Transform: UnaryWithOutput}},
		{[]Array{x, y, z}, map[Family]Arity{Reduction: BinaryWithOutputAndLength, Transform: BinaryWithOutputAndLength}},
	}

	for family, names := range map[Family][]string{Reduction: reductionNames, Transform: transformNames} {
		for _, name := range names {
			for _, tc := range cases {
				op, err := r.Resolve(family, name, tc.operands...)
				require.NoError(t, err, "%s %s/%d", family, name, len(tc.operands))
				assert.Equal(t, name, op.Name)
				assert.Equal(t, family, op.Family)
				assert.Equal(t, tc.arity[family], op.Arity, "%s %s/%d", family, name, len(tc.operands))
				assert.Same(t, x, op.X)
			}
		}
	}
}

func TestRegistry_SumScenario(t *testing.T) {
	r := NewRegistry()
	x, y, z := vector(4), vector(4), vector(1)

	op, err := r.Resolve(Reduction, "sum", x)
	require.NoError(t, err)
	assert.Equal(t, Unary, op.Arity)
	assert.Same(t, x, op.X)
	assert.Nil(t, op.Y)
	assert.Nil(t, op.Z)
	assert.Nil(t, op.Output())
	assert.Equal(t, 0, op.N)

	op, err = r.Resolve(Reduction, "sum", x, y, z)
	require.NoError(t, err)
	assert.Equal(t, BinaryWithOutputAndLength, op.Arity)
	assert.Same(t, x, op.X)
	assert.Same(t, y, op.Y)
	assert.Same(t, z, op.Z)
	assert.Same(t, z, op.Output())
	assert.Equal(t, 4, op.N)
}

func TestRegistry_PairwiseCarriesLength(t *testing.T) {
	r := NewRegistry()
	x, y := vector(5), vector(5)

	for _, name := range []string{"euclidean", "cosine", "manhattan"} {
		op, err := r.Resolve(Reduction, name, x, y)
		require.NoError(t, err)
		assert.Equal(t, Binary, op.Arity)
		assert.Equal(t, 5, op.N, name)
	}

	op, err := r.Resolve(Reduction, "sum", x, y)
	require.NoError(t, err)
	assert.Equal(t, 0, op.N)
}

func TestRegistry_TransformOutputs(t *testing.T) {
	r := NewRegistry()
	x, y, z := vector(3), vector(3), vector(3)

	op, err := r.Resolve(Transform, "abs", x)
	require.NoError(t, err)
	assert.Same(t, x, op.Output(), "unary transforms write in place")

	op, err = r.Resolve(Transform, "abs", x, y)
	require.NoError(t, err)
	assert.Same(t, y, op.Output())

	op, err = r.Resolve(Transform, "relu", x, y, z)
	require.NoError(t, err)
	assert.Same(t, z, op.Output())
	assert.Equal(t, 0, op.N)
}

func TestRegistry_FixedParams(t *testing.T) {
	r := NewRegistry()
	x, y, z := vector(2), vector(2), vector(2)

	want := map[string]struct {
		key   string
		value float64
	}{
		"pow":       {ParamExponent, 2},
		"stabilize": {ParamBound, 1},
		"relu":      {ParamThreshold, 0},
	}

	for name, w := range want {
		for _, operands := range [][]Array{{x}, {x, y}, {x, y, z}} {
			op, err := r.Resolve(Transform, name, operands...)
			require.NoError(t, err)
			v, ok := op.Param(w.key)
			require.True(t, ok, "%s/%d missing %s", name, len(operands), w.key)
			assert.Equal(t, w.value, v, "%s/%d", name, len(operands))
		}
	}
}

func TestOperation_WithParamCopies(t *testing.T) {
	r := NewRegistry()
	op, err := r.Resolve(Transform, "pow", vector(2))
	require.NoError(t, err)

	cubed := op.WithParam(ParamExponent, 3)
	v, _ := cubed.Param(ParamExponent)
	assert.Equal(t, 3.0, v)
	v, _ = op.Param(ParamExponent)
	assert.Equal(t, 2.0, v, "WithParam must not mutate the original")

	again, err := r.Resolve(Transform, "pow", vector(2))
	require.NoError(t, err)
	v, _ = again.Param(ParamExponent)
	assert.Equal(t, 2.0, v, "registry defaults must not be shared")

	params := cubed.Params()
	params[ParamExponent] = 10
	v, _ = cubed.Param(ParamExponent)
	assert.Equal(t, 3.0, v)
}

func TestRegistry_IllegalName(t *testing.T) {
	r := NewRegistry()
	x := vector(2)

	for _, name := range []string{"Sum", "SUM", "summ", "", "relu "} {
		_, err := r.Resolve(Reduction, name, x)
		require.Error(t, err)
		assert.ErrorIs(t, err, buffer.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "Illegal name "+name)
	}

	_, err := r.Resolve(Transform, "sum", x)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument, "names do not cross families")
	_, err = r.Resolve(Reduction, "relu", x)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)
}

func TestRegistry_BadOperands(t *testing.T) {
	r := NewRegistry()
	x := vector(2)

	_, err := r.Resolve(Reduction, "sum")
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)

	_, err = r.Resolve(Reduction, "sum", x, x, x, x)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)

	_, err = r.Resolve(Transform, "abs", x, nil)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)

	var typed *buffer.HostBuffer
	for _, operands := range [][]Array{{typed}, {x, typed}, {typed, x, x}} {
		assert.NotPanics(t, func() {
			_, err = r.Resolve(Reduction, "sum", operands...)
		})
		assert.ErrorIs(t, err, buffer.ErrInvalidArgument)
	}
}

func TestRegistry_Loss(t *testing.T) {
	r := NewRegistry()
	x, y := vector(2), vector(2)

	_, err := r.ResolveLoss("mse", x, y)
	assert.ErrorIs(t, err, buffer.ErrNotImplemented)

	_, err = r.Resolve(Loss, "xent", x, y)
	assert.ErrorIs(t, err, buffer.ErrNotImplemented)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	double := NewTransform("double", func(dst, src []float64, _ Operation) {
		for i, v := range src {
			dst[i] = 2 * v
		}
	}, nil)
	require.NoError(t, r.Register(Transform, "double", double))
	assert.Contains(t, r.Names(Transform), "double")

	err := r.Register(Transform, "double", double)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)

	err = r.Register(Reduction, "sum", NewReduction("sum", sum))
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument, "built-ins cannot be replaced")

	assert.Error(t, r.Register(Transform, "", double))
	assert.Error(t, r.Register(Transform, "nil", nil))

	op, err := r.Resolve(Transform, "double", vector(2))
	require.NoError(t, err)
	assert.Equal(t, "double", op.Name)
	assert.Equal(t, Transform, op.Family)
}

func TestFamilyAndArityStrings(t *testing.T) {
	assert.Equal(t, "reduction", Reduction.String())
	assert.Equal(t, "transform", Transform.String())
	assert.Equal(t, "loss", Loss.String())
	assert.Equal(t, "unary", Unary.String())
	assert.Equal(t, "binary-with-output-and-length", BinaryWithOutputAndLength.String())
}
