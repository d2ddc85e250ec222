package metrics

import (
  "sync"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-thermo-sync/device"
)

const namespace = "thermo_sync"

var (
  ThermometersSelected = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "thermometers_selected_total",
    Help: "Devices advertising the thermometer service.",
  })
  ReadingsDecoded = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "readings_decoded_total",
  })
  DecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "decode_failures_total",
    Help: "Thermometer payloads that could not be decoded and were skipped.",
  })
  SyncEpisodes = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "sync_episodes_total",
    Help: "Bucket sync episodes by outcome.",
  }, []string{"outcome"})
  RowsAppended = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "bucket_rows_appended_total",
  })
  BucketsInitialized = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "buckets_initialized_total",
  })
  TransformObjects = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "transform_objects_published_total",
  })
  TransformRecords = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "transform_records_total",
  })
  TransformRowsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: namespace,
    Name: "transform_rows_skipped_total",
    Help: "Malformed raw rows left out of the output.",
  })
)

var (
  descTemperature = prometheus.NewDesc(
    "sensor_temperature_celsius",
    "Temperature reported by the sensor in Celsius.",
    []string{"address", "mac"},
    nil,
  )

  descHumidity = prometheus.NewDesc(
    "sensor_humidity_ratio",
    "Relative humidity reported by the sensor.",
    []string{"address", "mac"},
    nil,
  )

  descBattery = prometheus.NewDesc(
    "sensor_battery_ratio",
    "Battery percentage reported by the sensor.",
    []string{"address", "mac"},
    nil,
  )

  descBatteryVolts = prometheus.NewDesc(
    "sensor_battery_volts",
    "Battery voltage reported by the sensor.",
    []string{"address", "mac"},
    nil,
  )

  descCaptureTime = prometheus.NewDesc(
    "sensor_capture_timestamp_seconds",
    "When the last reading of the sensor was captured.",
    []string{"address", "mac"},
    nil,
  )
)

// Readings exposes the last decoded reading of every thermometer as gauges. Samples carry no
// timestamp (the textfile collector rejects them); the capture time is a gauge of its own.
type Readings struct {
  mu sync.Mutex
  latest map[string]device.Reading
}

func NewReadings() *Readings {
  return &Readings{latest: make(map[string]device.Reading)}
}

func (c *Readings) Update(readings []device.Reading) {
  c.mu.Lock()
  defer c.mu.Unlock()

  for _, r := range readings {
    c.latest[r.Address] = r
  }
}

func (c *Readings) Describe(ch chan<- *prometheus.Desc) {
  prometheus.DescribeByCollect(c, ch)
}

func (c *Readings) Collect(ch chan<- prometheus.Metric) {
  c.mu.Lock()
  defer c.mu.Unlock()

  for addr, reading := range c.latest {
    gauges := []struct{
      desc *prometheus.Desc
      value float64
    }{
      {descTemperature, reading.Temperature()},
      {descHumidity, float64(reading.Humidity) / 100},
      {descBattery, float64(reading.BatteryPercent) / 100},
      {descBatteryVolts, float64(reading.BatteryMillivolts) / 1000},
      {descCaptureTime, float64(reading.CaptureTime.Unix())},
    }

    for _, g := range gauges {
      ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value, addr, reading.MAC)
    }
  }
}

func Register(reg prometheus.Registerer) {
  reg.MustRegister(
    ThermometersSelected,
    ReadingsDecoded,
    DecodeFailures,
    SyncEpisodes,
    RowsAppended,
    BucketsInitialized,
    TransformObjects,
    TransformRecords,
    TransformRowsSkipped,
  )
}

// WriteTextfile dumps everything gathered by g in the node exporter textfile format. Batch runs
// use it instead of a scrape endpoint.
func WriteTextfile(path string, g prometheus.Gatherer) error {
  return prometheus.WriteToTextfile(path, g)
}
