package metrics_test

import (
  "strings"
  "testing"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/testutil"
  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/metrics"
)

func TestReadings_Collect(t *testing.T) {
  c := metrics.NewReadings()
  c.Update([]device.Reading{{
    Address: "A4:C1:38:00:00:01",
    MAC: "aabbccddeeff",
    CaptureTime: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
    TemperatureDeci: 250,
    Humidity: 40,
    BatteryPercent: 90,
    BatteryMillivolts: 3100,
  }})

  if n := testutil.CollectAndCount(c); n != 5 {
    t.Fatalf("CollectAndCount: got %d, wanted 5", n)
  }

  expected := `
# HELP sensor_temperature_celsius Temperature reported by the sensor in Celsius.
# TYPE sensor_temperature_celsius gauge
sensor_temperature_celsius{address="A4:C1:38:00:00:01",mac="aabbccddeeff"} 25
# HELP sensor_capture_timestamp_seconds When the last reading of the sensor was captured.
# TYPE sensor_capture_timestamp_seconds gauge
sensor_capture_timestamp_seconds{address="A4:C1:38:00:00:01",mac="aabbccddeeff"} 1.709993107e+09
`

  if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "sensor_temperature_celsius", "sensor_capture_timestamp_seconds"); err != nil {
    t.Fatalf("CollectAndCompare: %v", err)
  }
}

func TestRegister(t *testing.T) {
  reg := prometheus.NewRegistry()
  metrics.Register(reg)

  metrics.SyncEpisodes.WithLabelValues("success").Inc()

  if got := testutil.ToFloat64(metrics.SyncEpisodes.WithLabelValues("success")); got < 1 {
    t.Fatalf("SyncEpisodes{success}: got %v", got)
  }
}
