// Package transform converts raw day buckets into normalized output objects.
//
// The stage keeps no record of what it already processed: every run lists the whole input
// namespace and republishes every output object. Re-running it is harmless only because an
// output key is overwritten in full.
package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/metrics"
	"github.com/robertof/go-thermo-sync/store"
)

const DefaultParallelism = 4

type Options struct {
	Format      string
	Compression string
	// Objects converted concurrently. Values below 1 mean DefaultParallelism.
	Parallelism int
}

type Stage struct {
	store       store.Store
	layout      bucket.Layout
	enc         encoder
	parallelism int
}

// ObjectReport describes one published output object.
type ObjectReport struct {
	Input   string
	Output  string
	Records int
	Skipped int
}

type Report struct {
	Objects []ObjectReport
}

func (r Report) Records() (n int) {
	for _, o := range r.Objects {
		n += o.Records
	}
	return n
}

func New(s store.Store, layout bucket.Layout, opts Options) (*Stage, error) {
	enc, err := newEncoder(opts.Format, opts.Compression)
	if err != nil {
		return nil, err
	}

	p := opts.Parallelism
	if p < 1 {
		p = DefaultParallelism
	}

	return &Stage{store: s, layout: layout, enc: enc, parallelism: p}, nil
}

// Run converts every raw bucket under the input namespace. Any store failure aborts the run;
// objects published before the failure stay published.
func (s *Stage) Run(ctx context.Context) (Report, error) {
	prefix := s.layout.InputNamespace()

	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return Report{}, errors.Wrapf(err, "transform: list %q", prefix)
	}

	var inputs []string

	for _, key := range keys {
		if _, ok := s.layout.KeyFromRemote(key); !ok {
			log.Debug().Str("Key", key).Msg("transform: ignoring object that is not a raw bucket")
			continue
		}

		inputs = append(inputs, key)
	}

	log.Info().
		Str("Prefix", prefix).
		Int("Objects", len(inputs)).
		Msg("transform: converting raw buckets")

	reports := make([]ObjectReport, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelism)

	for i, input := range inputs {
		i, input := i, input

		eg.Go(func() error {
			report, err := s.convertObject(egCtx, input)
			if err != nil {
				return err
			}

			reports[i] = report
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	return Report{Objects: reports}, nil
}

func (s *Stage) convertObject(ctx context.Context, input string) (report ObjectReport, err error) {
	report.Input = input
	report.Output = s.layout.OutputKey(input, s.enc.ext)

	data, err := s.store.Get(ctx, input)
	if err != nil {
		return report, errors.Wrapf(err, "transform: get %q", input)
	}

	records, skipped, err := Convert(input, data)
	if err != nil {
		return report, err
	}

	out, err := s.enc.encode(records)
	if err != nil {
		return report, errors.Wrapf(err, "transform: encode %q", input)
	}

	if err := s.store.Put(ctx, report.Output, out); err != nil {
		return report, errors.Wrapf(err, "transform: put %q", report.Output)
	}

	report.Records = len(records)
	report.Skipped = skipped

	metrics.TransformObjects.Inc()
	metrics.TransformRecords.Add(float64(len(records)))
	metrics.TransformRowsSkipped.Add(float64(skipped))

	log.Info().
		Str("Input", input).
		Str("Output", report.Output).
		Int("Records", report.Records).
		Int("Skipped", report.Skipped).
		Msg("transform: published output object")

	return report, nil
}

// Convert maps every data row of a raw bucket onto a Record, preserving row order. The first
// row is dropped when it is the header. Malformed rows are skipped and counted.
func Convert(name string, data []byte) (records []Record, skipped int, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for line := 0; ; line++ {
		fields, err := r.Read()

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, skipped, errors.Wrapf(err, "transform: parse %q", name)
		}

		if line == 0 {
			if bucket.IsHeader(fields) {
				continue
			}

			log.Warn().Str("Input", name).Msg("transform: raw bucket has no header, first row treated as data")
		}

		rec, err := ToRecord(fields)
		if err != nil {
			skipped += 1

			log.Warn().
				Str("Input", name).
				Int("Line", line + 1).
				Err(err).
				Msg("transform: skipping malformed row")

			continue
		}

		records = append(records, rec)
	}

	return records, skipped, nil
}
