package main

import (
  "context"
  "os"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/rs/zerolog"
  "github.com/rs/zerolog/log"

  "github.com/robertof/go-thermo-sync/ble"
  "github.com/robertof/go-thermo-sync/collector"
  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/device/atc"
  "github.com/robertof/go-thermo-sync/metrics"
  "github.com/robertof/go-thermo-sync/store"
  "github.com/robertof/go-thermo-sync/store/local"
  "github.com/robertof/go-thermo-sync/store/s3"
  "github.com/robertof/go-thermo-sync/syncer"
  "github.com/robertof/go-thermo-sync/transform"
  "github.com/robertof/go-thermo-sync/utils"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("Mode", cfg.Mode).
    Str("Store", cfg.StoreBackend).
    Str("ServiceUUID", cfg.ServiceUUID).
    Array("AllowList", utils.ToZeroLogArray(cfg.AllowList)).
    Dur("ScanWindowSec", cfg.ScanWindow).
    Msg("Starting with the specified configuration")

  ctx := context.Background()

  registry := prometheus.NewRegistry()
  metrics.Register(registry)

  st := openStore(ctx, cfg)
  failed := false

  if cfg.Mode == modeAll || cfg.Mode == modeIngest {
    ble.RegisterMetrics(registry)

    readings := metrics.NewReadings()
    registry.MustRegister(readings)

    if err := runIngest(ctx, cfg, st, readings); err != nil {
      failed = true
      log.Error().Err(err).Msg("Ingestion cycle failed")
    }
  }

  // the transform stage only reads what is already published, so it runs even when ingestion
  // failed.
  if cfg.Mode == modeAll || cfg.Mode == modeTransform {
    if err := runTransform(ctx, cfg, st); err != nil {
      failed = true
      log.Error().Err(err).Msg("Transform run failed")
    }
  }

  if cfg.MetricsTextfile != "" {
    if err := metrics.WriteTextfile(cfg.MetricsTextfile, registry); err != nil {
      log.Error().Err(err).Str("Path", cfg.MetricsTextfile).Msg("Failed to write metrics")
    }
  }

  if failed {
    os.Exit(1)
  }
}

func openStore(ctx context.Context, cfg config) store.Store {
  var backend store.Store
  var err error

  switch cfg.StoreBackend {
  case backendLocal:
    backend, err = local.New(cfg.LocalRoot)
  case backendS3:
    backend, err = s3.New(ctx, s3.Options{
      Bucket: cfg.S3Bucket,
      Region: cfg.S3Region,
      Endpoint: cfg.S3Endpoint,
      UsePathStyle: cfg.S3PathStyle,
    })
  }

  if err != nil {
    log.Fatal().Err(err).Str("Store", cfg.StoreBackend).Msg("Failed to initialize object store")
  }

  return store.WithRetry(backend, store.RetryOptions{
    MaxRetries: cfg.StoreRetries,
    TimeoutPerAttempt: cfg.StoreTimeout,
    BackoffFactor: cfg.StoreBackoff,
  })
}

func initBle(cfg config) *ble.Handle {
  var bleFlags ble.Flags

  if cfg.ActiveScan {
    bleFlags |= ble.FlagScanTypeActive
  }

  if len(cfg.AllowList) > 0 {
    bleFlags |= ble.FlagEnableDeviceAllowList
  }

  if cfg.FilterDuplicates {
    bleFlags |= ble.FlagFilterDuplicates
  }

  bleHandle, err := ble.Init(cfg.BluetoothDeviceId, bleFlags)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  if len(cfg.AllowList) > 0 {
    if err := bleHandle.SetAllowListedAddresses(cfg.AllowList); err != nil {
      log.Error().Err(err).Msg("Failed to set device allow list")
    }
  }

  return bleHandle
}

// sigScanner stops the scan window early on SIGINT/SIGTERM, failing the cycle before anything
// is written.
type sigScanner struct {
  *ble.Handle
}

func (s sigScanner) Discover(ctx context.Context, window time.Duration) ([]device.Discovered, error) {
  return s.Handle.Discover(ble.WrapContextWithSigHandler(context.WithCancel(ctx)), window)
}

func runIngest(ctx context.Context, cfg config, st store.Store, readings *metrics.Readings) error {
  bleHandle := initBle(cfg)
  defer bleHandle.Stop()

  cycle := collector.Cycle{
    Scanner: sigScanner{bleHandle},
    Filter: atc.Filter{ServiceUUID: cfg.ServiceUUID},
    Syncer: syncer.New(st, cfg.layout()),
    Readings: readings,
  }

  summary, err := cycle.Run(ctx, collector.CollectionOptions{
    ScanWindow: cfg.ScanWindow,
    MaxRetries: cfg.MaxRetries,
    BackoffFactor: cfg.Backoff,
  })

  if err != nil {
    return err
  }

  event := log.Info().
    Time("CaptureTime", summary.CaptureTime).
    Int("Discovered", summary.Discovered).
    Int("Thermometers", summary.Selected).
    Int("Readings", len(summary.Readings()))

  if summary.Sync != nil {
    event = event.Stringer("Key", summary.Sync.Key).Int("RowsAppended", summary.Sync.RowsAppended)
  }

  event.Msg("Ingestion cycle completed")

  return nil
}

func runTransform(ctx context.Context, cfg config, st store.Store) error {
  stage, err := transform.New(st, cfg.layout(), transform.Options{
    Format: cfg.OutputFormat,
    Compression: cfg.OutputCompression,
    Parallelism: cfg.TransformParallelism,
  })

  if err != nil {
    return err
  }

  report, err := stage.Run(ctx)

  if err != nil {
    return err
  }

  log.Info().
    Int("Objects", len(report.Objects)).
    Int("Records", report.Records()).
    Msg("Transform run completed")

  return nil
}
