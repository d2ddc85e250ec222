package main

import (
  "flag"
  "fmt"
  "net"
  "os"
  "slices"
  "strings"
  "time"

  "gopkg.in/yaml.v3"

  "github.com/robertof/go-thermo-sync/ble"
  "github.com/robertof/go-thermo-sync/bucket"
  "github.com/robertof/go-thermo-sync/collector"
  "github.com/robertof/go-thermo-sync/device/atc"
  "github.com/robertof/go-thermo-sync/store"
  "github.com/robertof/go-thermo-sync/transform"
)

const (
  modeAll = "all"
  modeIngest = "ingest"
  modeTransform = "transform"

  backendS3 = "s3"
  backendLocal = "local"
)

type config struct {
  Debug, Trace bool
  ConfigFile string
  Mode string
  DiscoverDevices bool

  BluetoothDeviceId int
  ActiveScan bool
  FilterDuplicates bool
  AllowList []net.HardwareAddr
  ScanWindow time.Duration
  MaxRetries int
  Backoff time.Duration
  ServiceUUID string

  StoreBackend string
  LocalRoot string
  S3Bucket, S3Region, S3Endpoint string
  S3PathStyle bool
  StoreTimeout time.Duration
  StoreRetries int
  StoreBackoff time.Duration

  ScratchDir, InputPrefix, OutputPrefix string
  OutputFormat, OutputCompression string
  TransformParallelism int

  MetricsTextfile string
}

type allowList struct {
  list *[]net.HardwareAddr
}

func (a *allowList) String() string {
  if a.list == nil {
    return ""
  }

  var addrs []string

  for _, addr := range *a.list {
    addrs = append(addrs, addr.String())
  }

  return strings.Join(addrs, ",")
}

func (a *allowList) Set(v string) error {
  for _, entry := range strings.Split(v, ",") {
    entry = strings.TrimSpace(entry)

    if entry == "" {
      continue
    }

    addr, err := net.ParseMAC(entry)
    if err != nil {
      return fmt.Errorf("invalid addr: %w", err)
    }

    *a.list = append(*a.list, addr)
  }

  return nil
}

// applyConfigFile sets every flag named in the YAML file that was not given on the command line.
// Keys are flag names; sequences are joined with commas.
func applyConfigFile(path string) error {
  raw, err := os.ReadFile(path)
  if err != nil {
    return fmt.Errorf("failed to read config file: %w", err)
  }

  values := map[string]any{}

  if err := yaml.Unmarshal(raw, &values); err != nil {
    return fmt.Errorf("failed to parse config file %q: %w", path, err)
  }

  explicit := map[string]bool{}
  flag.Visit(func(f *flag.Flag) {
    explicit[f.Name] = true
  })

  for name, value := range values {
    if flag.Lookup(name) == nil {
      return fmt.Errorf("config file %q: unknown setting %q", path, name)
    }

    if explicit[name] {
      continue
    }

    var s string

    if items, ok := value.([]any); ok {
      parts := make([]string, len(items))
      for i, item := range items {
        parts[i] = fmt.Sprint(item)
      }
      s = strings.Join(parts, ",")
    } else {
      s = fmt.Sprint(value)
    }

    if err := flag.Set(name, s); err != nil {
      return fmt.Errorf("config file %q: invalid value for %q: %w", path, name, err)
    }
  }

  return nil
}

func validate(cfg *config) error {
  if !slices.Contains([]string{modeAll, modeIngest, modeTransform}, cfg.Mode) {
    return fmt.Errorf("unknown mode %q", cfg.Mode)
  }

  if !slices.Contains([]string{backendS3, backendLocal}, cfg.StoreBackend) {
    return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
  }

  if cfg.StoreBackend == backendS3 && cfg.S3Bucket == "" {
    return fmt.Errorf("-s3-bucket is required with the s3 store")
  }

  uuid, err := ble.ParseUUID(cfg.ServiceUUID)
  if err != nil {
    return err
  }

  cfg.ServiceUUID = uuid

  if cfg.ScanWindow <= 0 {
    return fmt.Errorf("scan window must be positive, got %v", cfg.ScanWindow)
  }

  return nil
}

func ParseArgs() config {
  var cfg config

  flag.StringVar(&cfg.ConfigFile, "config", "", "YAML file with settings (keys are flag names). Flags take precedence")
  flag.StringVar(&cfg.Mode, "mode", modeAll, "What to run: 'ingest', 'transform' or 'all'")
  flag.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover available BLE devices and quit")

  flag.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  flag.BoolVar(&cfg.ActiveScan, "active-scan", false, "Run active instead of passive scans")
  flag.BoolVar(&cfg.FilterDuplicates, "filter-duplicates", false, "Keep only the first advertisement of each device per scan (controller side)")
  flag.Var(&allowList{list: &cfg.AllowList}, "allow", "Comma separated thermometer addresses. When set, everything else is ignored by the controller")
  flag.DurationVar(&cfg.ScanWindow, "scan-window", collector.DefaultScanWindow, "How long each scan listens for advertisements")
  flag.IntVar(&cfg.MaxRetries, "max-retries", collector.DefaultMaxRetries, "Max number of scan retries")
  flag.DurationVar(&cfg.Backoff, "backoff", collector.DefaultBackoffFactor, "Exponential backoff factor for scan retries")
  flag.StringVar(&cfg.ServiceUUID, "service-uuid", atc.ServiceUUID, "Service UUID the thermometers advertise their readings under")

  flag.StringVar(&cfg.StoreBackend, "store", backendS3, "Object store backend: 's3' or 'local'")
  flag.StringVar(&cfg.LocalRoot, "local-root", "store", "Root directory of the local store")
  flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket holding the raw and normalized objects")
  flag.StringVar(&cfg.S3Region, "s3-region", "", "S3 region (defaults to the AWS configuration)")
  flag.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "Endpoint of an S3-compatible service")
  flag.BoolVar(&cfg.S3PathStyle, "s3-path-style", false, "Use path-style S3 addressing")
  flag.DurationVar(&cfg.StoreTimeout, "store-timeout", store.DefaultTimeoutPerAttempt, "Timeout for each object store call")
  flag.IntVar(&cfg.StoreRetries, "store-retries", store.DefaultMaxRetries, "Retries for transient object store failures")
  flag.DurationVar(&cfg.StoreBackoff, "store-backoff", store.DefaultBackoffFactor, "Exponential backoff factor for object store retries")

  flag.StringVar(&cfg.ScratchDir, "scratch-dir", "tmp", "Directory for bucket working copies")
  flag.StringVar(&cfg.InputPrefix, "input-prefix", bucket.DefaultInputPrefix, "Namespace of raw buckets")
  flag.StringVar(&cfg.OutputPrefix, "output-prefix", bucket.DefaultOutputPrefix, "Namespace of normalized output")
  flag.StringVar(&cfg.OutputFormat, "output-format", transform.FormatJSONLines, "Normalized output format: 'jsonl' or 'cbor'")
  flag.StringVar(&cfg.OutputCompression, "output-compression", transform.CompressionNone, "Normalized output compression: 'none' or 'zstd'")
  flag.IntVar(&cfg.TransformParallelism, "transform-parallelism", transform.DefaultParallelism, "Raw buckets converted concurrently")

  flag.StringVar(&cfg.MetricsTextfile, "metrics-textfile", "", "Write metrics to this file (node exporter textfile format) when done")
  flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  flag.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  flag.Parse()

  if cfg.ConfigFile != "" {
    if err := applyConfigFile(cfg.ConfigFile); err != nil {
      fmt.Fprintln(os.Stderr, "Error:", err)
      os.Exit(1)
    }
  }

  if err := validate(&cfg); err != nil {
    fmt.Fprintln(os.Stderr, "Error:", err)
    flag.Usage()
    os.Exit(1)
  }

  return cfg
}

func (cfg config) layout() bucket.Layout {
  return bucket.Layout{
    ScratchDir: cfg.ScratchDir,
    InputPrefix: cfg.InputPrefix,
    OutputPrefix: cfg.OutputPrefix,
  }
}
