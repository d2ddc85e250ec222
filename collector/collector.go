package collector

import (
  "context"
  "errors"
  "time"

  "github.com/rs/zerolog/log"
  "golang.org/x/sync/errgroup"

  "github.com/robertof/go-thermo-sync/bucket"
  "github.com/robertof/go-thermo-sync/collector/model"
  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/device/atc"
  "github.com/robertof/go-thermo-sync/metrics"
  "github.com/robertof/go-thermo-sync/syncer"
  "github.com/robertof/go-thermo-sync/utils"
)

const (
  DefaultMaxRetries = 2
  DefaultScanWindow = 10 * time.Second
  DefaultBackoffFactor = 500 * time.Millisecond
)

type CollectionOptions struct {
  ScanWindow time.Duration
  MaxRetries int
  BackoffFactor time.Duration

  attempt int
}

type Scanner interface {
  Discover(ctx context.Context, window time.Duration) ([]device.Discovered, error)
}

type Syncer interface {
  Sync(ctx context.Context, key bucket.Key, readings []device.Reading) (syncer.Result, error)
}

// Cycle runs one ingestion: scan, select thermometers, decode, sync the day bucket.
type Cycle struct {
  Scanner Scanner
  Filter atc.Filter
  Syncer Syncer
  // Optional; receives every decoded reading.
  Readings *metrics.Readings
  // Defaults to time.Now.
  Now func() time.Time
}

type Summary struct {
  CaptureTime time.Time
  Discovered int
  Selected int
  Results []model.DeviceResult
  // Nil when nothing was synced.
  Sync *syncer.Result
}

func (s Summary) Readings() []device.Reading {
  return model.Readings(s.Results)
}

// Scan discovers devices, retrying with exponential backoff when the scan itself fails.
func Scan(ctx context.Context, scanner Scanner, options CollectionOptions) ([]device.Discovered, error) {
  window := options.ScanWindow

  if window <= 0 {
    window = DefaultScanWindow
  }

  devices, err := scanner.Discover(ctx, window)

  if err == nil || options.MaxRetries <= 0 || errors.Is(err, context.Canceled) || ctx.Err() != nil {
    return devices, err
  }

  backoff := options.BackoffFactor << int64(options.attempt)

  if backoff < 0 {
    backoff = DefaultBackoffFactor
  }

  log.Debug().
    Int("RetriesLeft", options.MaxRetries).
    Dur("Backoff", backoff).
    Err(err).
    Msg("Scan failed - will retry")

  select {
  case <-ctx.Done():
    log.Trace().Err(ctx.Err()).Msg("Retry aborted by context cancel")
    return nil, ctx.Err()
  case <-time.After(backoff):
  }

  options.MaxRetries -= 1
  options.attempt += 1

  return Scan(ctx, scanner, options)
}

// Decode decodes every payload in parallel. Results are sorted by address; failures are
// reported in the results and never abort the batch.
func Decode(captureTime time.Time, payloads map[string][]byte) []model.DeviceResult {
  addrs := utils.SortedKeys(payloads)

  results := make([]model.DeviceResult, len(addrs))

  var eg errgroup.Group

  for i, addr := range addrs {
    i, addr := i, addr

    eg.Go(func() error {
      reading, err := atc.Decode(addr, captureTime, payloads[addr])

      results[i] = model.DeviceResult{
        Address: addr,
        Result: model.Result{
          Reading: reading,
          Error: err,
        },
      }

      return nil
    })
  }

  // workers never fail.
  _ = eg.Wait()

  return results
}

func (c *Cycle) now() time.Time {
  if c.Now != nil {
    return c.Now().UTC()
  }

  return time.Now().UTC()
}

func (c *Cycle) Run(ctx context.Context, options CollectionOptions) (summary Summary, err error) {
  devices, err := Scan(ctx, c.Scanner, options)

  if err != nil {
    return summary, err
  }

  summary.Discovered = len(devices)
  summary.CaptureTime = c.now()

  payloads := c.Filter.Select(devices)
  summary.Selected = len(payloads)
  metrics.ThermometersSelected.Add(float64(len(payloads)))

  log.Info().
    Int("Discovered", summary.Discovered).
    Int("Thermometers", summary.Selected).
    Msg("Scan finished")

  summary.Results = Decode(summary.CaptureTime, payloads)

  for _, res := range summary.Results {
    if !res.Ok() {
      metrics.DecodeFailures.Inc()

      log.Warn().
        Str("Address", res.Address).
        Hex("Payload", payloads[res.Address]).
        Err(res.Error).
        Msg("Failed to decode advertisement, skipping device")
    } else {
      metrics.ReadingsDecoded.Inc()

      log.Debug().
        Str("Address", res.Address).
        Stringer("Reading", res.Reading).
        Msg("Decoded reading")
    }
  }

  readings := summary.Readings()

  if len(readings) == 0 {
    log.Warn().
      Int("Failed", model.Failed(summary.Results)).
      Msg("No readings decoded in this cycle, nothing to sync")
    return summary, nil
  }

  if c.Readings != nil {
    c.Readings.Update(readings)
  }

  key := bucket.KeyFor(summary.CaptureTime)

  res, err := c.Syncer.Sync(ctx, key, readings)

  if err != nil {
    return summary, err
  }

  summary.Sync = &res

  return summary, nil
}
