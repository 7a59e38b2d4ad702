package main

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
	"github.com/23skdu/longbow-ndbuffer/internal/interop"
)

func writeText(w io.Writer, reports []*Report) error {
	p := message.NewPrinter(language.English)
	for _, r := range reports {
		if _, err := p.Fprintf(w, "%s: %s[%d] (%s)\n", r.File, r.DType, r.Length, r.Location); err != nil {
			return err
		}
		for _, red := range r.Reductions {
			if _, err := p.Fprintf(w, "  %-10s %v\n", red.Name, red.Value); err != nil {
				return err
			}
		}
		if r.Transform != nil {
			if _, err := p.Fprintf(w, "  %-10s %v\n", r.Transform.Name, r.Transform.Head); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCBOR(w io.Writer, reports []*Report) error {
	return cbor.NewEncoder(w).Encode(reports)
}

func writeArrow(w io.Writer, names []string, bufs []buffer.DataBuffer) error {
	builder := interop.NewRecordBatchBuilder(memory.NewGoAllocator())
	rec, err := builder.BuildRecordBatch(names, bufs)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	defer rec.Release()
	return interop.WriteStream(w, rec)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
