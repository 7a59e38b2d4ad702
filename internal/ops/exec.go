package ops

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

var tracer = otel.Tracer("github.com/23skdu/longbow-ndbuffer/internal/ops")

// uploader is implemented by buffers whose results must be pushed back to a
// device after the host mirror is written.
type uploader interface {
	Upload(ctx context.Context) error
}

// Reduce runs a reduction on the host and returns its value. When the
// operation has an output operand the value is also stored at element 0.
func Reduce(ctx context.Context, op Operation) (result float64, err error) {
	if op.Family != Reduction || op.reduce == nil {
		return 0, fmt.Errorf("%w: %s %q is not an executable reduction", buffer.ErrUnsupportedOperation, op.Family, op.Name)
	}
	ctx, span, done := startExec(ctx, op)
	defer func() { done(err) }()

	x, err := operandValues(op.X, "x")
	if err != nil {
		return 0, err
	}

	var y []float64
	if op.Y != nil {
		y, err = operandValues(op.Y, "y")
		if err != nil {
			return 0, err
		}
		if op.pairwise && len(y) != len(x) {
			return 0, fmt.Errorf("%w: %s: operand lengths differ (%d and %d)", buffer.ErrInvalidArgument, op.Name, len(x), len(y))
		}
	}

	n := len(x)
	if op.N > 0 {
		if op.N > len(x) {
			return 0, fmt.Errorf("%w: element count %d exceeds x length %d", buffer.ErrInvalidArgument, op.N, len(x))
		}
		n = op.N
	}
	x = x[:n]
	if len(y) > n {
		y = y[:n]
	}

	result, err = op.reduce(x, y)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op.Name, err)
	}
	span.SetAttributes(attribute.Float64("result", result))

	if out := op.Output(); out != nil {
		if err := store(ctx, out, func(b buffer.DataBuffer) error {
			return b.PutFloat64(0, result)
		}); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// Apply runs a transform on the host, writing into the operation's output.
// Outputs that live on a device are uploaded afterwards.
func Apply(ctx context.Context, op Operation) (err error) {
	if op.Family != Transform || op.transform == nil {
		return fmt.Errorf("%w: %s %q is not an executable transform", buffer.ErrUnsupportedOperation, op.Family, op.Name)
	}
	ctx, _, done := startExec(ctx, op)
	defer func() { done(err) }()

	src, err := operandValues(op.X, "x")
	if err != nil {
		return err
	}
	out := op.Output()
	if out.Length() != len(src) {
		return fmt.Errorf("%w: output length %d does not match input length %d", buffer.ErrInvalidArgument, out.Length(), len(src))
	}

	dst := make([]float64, len(src))
	op.transform(dst, src, op)

	return store(ctx, out, func(b buffer.DataBuffer) error {
		return b.SetData(dst)
	})
}

func startExec(ctx context.Context, op Operation) (context.Context, trace.Span, func(error)) {
	ctx, span := tracer.Start(ctx, "ops."+op.Family.String(), trace.WithAttributes(
		attribute.String("name", op.Name),
		attribute.String("arity", op.Arity.String()),
	))
	start := time.Now()
	return ctx, span, func(err error) {
		executionDuration.WithLabelValues(op.Family.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "operation failed")
		} else {
			executionsTotal.WithLabelValues(op.Family.String(), op.Name).Inc()
		}
		span.End()
	}
}

func operandValues(a Array, label string) ([]float64, error) {
	b, ok := a.(buffer.DataBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: operand %s is %T, not a data buffer", buffer.ErrUnsupportedOperation, label, a)
	}
	return b.AsDouble()
}

func store(ctx context.Context, out Array, write func(buffer.DataBuffer) error) error {
	b, ok := out.(buffer.DataBuffer)
	if !ok {
		return fmt.Errorf("%w: output is %T, not a data buffer", buffer.ErrUnsupportedOperation, out)
	}
	if err := write(b); err != nil {
		return err
	}
	if u, ok := out.(uploader); ok {
		return u.Upload(ctx)
	}
	return nil
}
