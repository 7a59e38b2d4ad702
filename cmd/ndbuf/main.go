package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
	"github.com/23skdu/longbow-ndbuffer/internal/device"
	"github.com/23skdu/longbow-ndbuffer/internal/ops"
)

var (
	dtypeName       = flag.String("dtype", "float32", "Element type of the persisted buffers (float16, float32, float64, int32, int64)")
	reduceList      = flag.String("reduce", "sum,min,max,norm2", "Comma separated reductions to run on each buffer")
	transformName   = flag.String("transform", "", "Transform to apply into a fresh output buffer")
	referencePath   = flag.String("ref", "", "Persisted buffer that pairwise reductions compare against")
	format          = flag.String("format", "text", "Report format: 'text' (default) or 'cbor'")
	arrowOut        = flag.Bool("arrow", false, "Write the buffers as an Arrow IPC stream to stdout instead of a report")
	packPath        = flag.String("pack", "", "Persist the numeric arguments as a buffer at this path and exit")
	jobs            = flag.Int("jobs", runtime.NumCPU(), "Maximum number of files inspected concurrently")
	transferTimeout = flag.Duration("transfer-timeout", 0, "Timeout for each host/device transfer (0 = none)")
	deviceMemory    = flag.String("device-memory", "0", "Device memory capacity (e.g. 4GB, 512MB, 0 = unbounded)")
	enableOTel      = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	dumpMetrics     = flag.Bool("metrics", false, "Write prometheus metrics to stderr on exit")
	debug           = flag.Bool("debug", false, "Enable debug logging")
)

func parseBytes(s string) int64 {
	// 4GB, 100MB, 1024
	if s == "" || s == "0" {
		return 0
	}
	var val int64
	var unit string
	fmt.Sscanf(s, "%d%s", &val, &unit)

	switch unit {
	case "GB", "G":
		return val * 1024 * 1024 * 1024
	case "MB", "M":
		return val * 1024 * 1024
	case "KB", "K":
		return val * 1024
	default:
		return val
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ndbuf [flags] file...\n       ndbuf -pack out.bin [flags] value...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	dtype, err := buffer.ParseDataType(*dtypeName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -dtype")
	}

	cfg := device.DefaultConfig()
	cfg.TransferTimeout = *transferTimeout
	cfg.Capacity = parseBytes(*deviceMemory)
	backend := device.NewHostBackend(cfg)
	registerDeviceGauges(backend)

	ctx := context.Background()

	if *packPath != "" {
		values, err := parseValues(flag.Args())
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid values")
		}
		if err := Pack(ctx, backend, dtype, *packPath, values); err != nil {
			log.Fatal().Err(err).Str("path", *packPath).Msg("Failed to pack buffer")
		}
		log.Info().Str("path", *packPath).Int("length", len(values)).Str("dtype", dtype.String()).Msg("Packed buffer")
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	opts := runOptions{
		dtype:     dtype,
		reduce:    splitNames(*reduceList),
		transform: *transformName,
		reference: *referencePath,
		format:    *format,
		arrow:     *arrowOut,
		jobs:      *jobs,
	}
	if err := run(ctx, backend, opts, flag.Args(), os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("ndbuf failed")
	}

	if *dumpMetrics {
		if err := writeMetrics(os.Stderr, prometheus.DefaultGatherer); err != nil {
			log.Warn().Err(err).Msg("Failed to write metrics")
		}
	}
}

type runOptions struct {
	dtype     buffer.DataType
	reduce    []string
	transform string
	reference string
	format    string
	arrow     bool
	jobs      int
}

// run inspects files concurrently and writes the results in argument order.
func run(ctx context.Context, backend *device.Backend, opts runOptions, files []string, w io.Writer) error {
	if opts.format != "text" && opts.format != "cbor" {
		return fmt.Errorf("%w: unknown format %q", buffer.ErrInvalidArgument, opts.format)
	}

	inspector, err := NewInspector(backend, ops.NewRegistry(), opts.dtype, opts.reduce, opts.transform)
	if err != nil {
		return err
	}
	defer inspector.Close()

	if opts.reference != "" {
		if err := inspector.SetReference(ctx, opts.reference); err != nil {
			return err
		}
	}

	reports := make([]*Report, len(files))
	bufs := make([]buffer.DataBuffer, len(files))
	defer func() {
		for _, b := range bufs {
			if db, ok := b.(*device.DeviceBuffer); ok {
				_ = db.Free()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			rep, db, err := inspector.Inspect(gctx, path, opts.arrow)
			if err != nil {
				return err
			}
			reports[i] = rep
			if db != nil {
				bufs[i] = db
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	start := time.Now()
	switch {
	case opts.arrow:
		err = writeArrow(w, files, bufs)
	case opts.format == "cbor":
		err = writeCBOR(w, reports)
	default:
		err = writeText(w, reports)
	}
	log.Debug().Int("files", len(files)).Dur("elapsed", time.Since(start)).Msg("Wrote output")
	return err
}

func parseValues(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func registerDeviceGauges(backend *device.Backend) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ndbuf_device_memory_total_bytes",
			Help: "Device memory capacity (0 = unbounded)",
		},
		func() float64 {
			_, total := backend.Device().MemoryUsage()
			return float64(total)
		},
	))
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("ndbuf"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
