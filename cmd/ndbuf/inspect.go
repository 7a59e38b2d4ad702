package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
	"github.com/23skdu/longbow-ndbuffer/internal/device"
	"github.com/23skdu/longbow-ndbuffer/internal/ops"
)

var tracer = otel.Tracer("ndbuf")

// headLen is how many transformed elements a report keeps.
const headLen = 8

// Reduction is one named reduction result.
type Reduction struct {
	Name  string  `cbor:"name"`
	Value float64 `cbor:"value"`
}

// TransformResult summarises a transform applied to a buffer.
type TransformResult struct {
	Name string    `cbor:"name"`
	Head []float64 `cbor:"head"`
}

// Report describes one persisted buffer.
type Report struct {
	File       string           `cbor:"file"`
	DType      string           `cbor:"dtype"`
	Length     int              `cbor:"length"`
	Location   string           `cbor:"location"`
	Reductions []Reduction      `cbor:"reductions"`
	Transform  *TransformResult `cbor:"transform,omitempty"`
}

// Inspector restores persisted buffers onto a device and runs operations on them.
type Inspector struct {
	backend   *device.Backend
	registry  *ops.Registry
	codec     *device.Codec
	reduce    []string
	transform string
	reference *device.DeviceBuffer
}

// NewInspector validates the operation names against the registry up front.
func NewInspector(backend *device.Backend, registry *ops.Registry, dtype buffer.DataType, reduce []string, transform string) (*Inspector, error) {
	for _, name := range reduce {
		if !slices.Contains(registry.Names(ops.Reduction), name) {
			return nil, fmt.Errorf("%w: Illegal name %s", buffer.ErrInvalidArgument, name)
		}
	}
	if transform != "" && !slices.Contains(registry.Names(ops.Transform), transform) {
		return nil, fmt.Errorf("%w: Illegal name %s", buffer.ErrInvalidArgument, transform)
	}
	return &Inspector{
		backend:   backend,
		registry:  registry,
		codec:     device.NewCodec(backend, dtype),
		reduce:    reduce,
		transform: transform,
	}, nil
}

// SetReference loads the buffer pairwise reductions compare against.
func (in *Inspector) SetReference(ctx context.Context, path string) error {
	// The reference is read by concurrent inspections, so it keeps its host
	// mirror and never changes state after loading.
	ref, err := in.load(ctx, path, false)
	if err != nil {
		return fmt.Errorf("reference %s: %w", path, err)
	}
	in.reference = ref
	return nil
}

// Close releases the reference buffer.
func (in *Inspector) Close() error {
	if in.reference == nil {
		return nil
	}
	return in.reference.Free()
}

func (in *Inspector) load(ctx context.Context, path string, deviceOnly bool) (*device.DeviceBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := in.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	db := decoded.(*device.DeviceBuffer)
	if !deviceOnly {
		return db, nil
	}
	if err := db.ReleaseHost(ctx); err != nil {
		_ = db.Free()
		return nil, err
	}
	return db, nil
}

// Inspect restores the buffer at path and returns its report. When keep is
// true the restored buffer is returned and the caller must Free it.
func (in *Inspector) Inspect(ctx context.Context, path string, keep bool) (*Report, *device.DeviceBuffer, error) {
	ctx, span := tracer.Start(ctx, "ndbuf.inspect")
	span.SetAttributes(attribute.String("file", path))
	defer span.End()

	db, err := in.load(ctx, path, true)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	kept := false
	defer func() {
		if !kept {
			_ = db.Free()
		}
	}()

	rep := &Report{
		File:   path,
		DType:  db.DataType().String(),
		Length: db.Length(),
	}

	for _, name := range in.reduce {
		operands := []ops.Array{db}
		if in.reference != nil {
			operands = append(operands, in.reference)
		}
		op, err := in.registry.Resolve(ops.Reduction, name, operands...)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		v, err := ops.Reduce(ctx, op)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		rep.Reductions = append(rep.Reductions, Reduction{Name: name, Value: v})
	}

	if in.transform != "" {
		res, err := in.applyTransform(ctx, db)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		rep.Transform = res
	}

	rep.Location = db.Location().String()
	log.Debug().Str("file", path).Int("length", rep.Length).Str("location", rep.Location).Msg("Inspected buffer")

	if !keep {
		return rep, nil, nil
	}
	kept = true
	return rep, db, nil
}

func (in *Inspector) applyTransform(ctx context.Context, db *device.DeviceBuffer) (*TransformResult, error) {
	out, err := in.backend.NewBuffer(db.DataType(), db.Length())
	if err != nil {
		return nil, err
	}
	defer out.Free()

	op, err := in.registry.Resolve(ops.Transform, in.transform, db, out)
	if err != nil {
		return nil, err
	}
	if err := ops.Apply(ctx, op); err != nil {
		return nil, err
	}

	n := min(headLen, out.Length())
	head, err := out.GetDoublesAt(0, 1, n)
	if err != nil {
		return nil, err
	}
	return &TransformResult{Name: in.transform, Head: head}, nil
}

// Pack persists values as a dtype buffer at path.
func Pack(ctx context.Context, backend *device.Backend, dtype buffer.DataType, path string, values []float64) error {
	db, err := backend.FromFloat64(ctx, dtype, values)
	if err != nil {
		return err
	}
	defer db.Free()

	data, err := device.NewCodec(backend, dtype).Encode(db)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
