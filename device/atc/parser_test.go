package atc_test

import (
  "encoding/hex"
  "errors"
  "reflect"
  "testing"
  "time"

  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/device/atc"
)

var captureTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func mustHex(t *testing.T, s string) []byte {
  t.Helper()

  b, err := hex.DecodeString(s)
  if err != nil {
    t.Fatalf("hex.DecodeString(%q): %v", s, err)
  }

  return b
}

func TestDecode(t *testing.T) {
  data := mustHex(t, "aabbccddeeff00fa285a0c1c07")

  got, err := atc.Decode("A4:C1:38:00:00:01", captureTime, data)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", data, err)
  }

  want := device.Reading{
    Address:           "A4:C1:38:00:00:01",
    MAC:               "aabbccddeeff",
    CaptureTime:       captureTime,
    TemperatureDeci:   250,
    Humidity:          40,
    BatteryPercent:    90,
    BatteryMillivolts: 3100,
    Counter:           7,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("Decode(%x): got %+#v, wanted %+#v", data, got, want)
  }

  if got.Temperature() != 25.0 {
    t.Fatalf("Temperature(): got %v, wanted 25.0", got.Temperature())
  }

  if s := got.FormattedTemperature(); s != "25.0" {
    t.Fatalf("FormattedTemperature(): got %q, wanted %q", s, "25.0")
  }

  if s := got.FormattedCaptureTime(); s != "20240309140507" {
    t.Fatalf("FormattedCaptureTime(): got %q, wanted %q", s, "20240309140507")
  }
}

func TestDecode_CounterBoundaries(t *testing.T) {
  for counterHex, want := range map[string]uint8{"00": 0, "ff": 255} {
    data := mustHex(t, "aabbccddeeff00fa285a0c1c" + counterHex)

    got, err := atc.Decode("addr", captureTime, data)

    if err != nil {
      t.Fatalf("Decode(%x) got error: %v", data, err)
    }

    if got.Counter != want {
      t.Fatalf("Decode(%x): got counter %d, wanted %d", data, got.Counter, want)
    }
  }
}

func TestDecode_TrailingBytesIgnored(t *testing.T) {
  data := mustHex(t, "aabbccddeeff011d285a0c1c07ffff")

  got, err := atc.Decode("addr", captureTime, data)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", data, err)
  }

  if got.TemperatureDeci != 285 || got.FormattedTemperature() != "28.5" {
    t.Fatalf("Decode(%x): got temperature %v, wanted 28.5", data, got.FormattedTemperature())
  }
}

func TestDecode_InsufficientPayload(t *testing.T) {
  full := mustHex(t, "aabbccddeeff00fa285a0c1c07")

  for n := 0; n < atc.PayloadLength; n++ {
    _, err := atc.Decode("addr", captureTime, full[:n])

    if !errors.Is(err, device.ErrInsufficientPayload) {
      t.Fatalf("Decode(%d bytes): got error %v, wanted %v", n, err, device.ErrInsufficientPayload)
    }
  }
}

func TestDecode_NormalizesCaptureTimeToUTC(t *testing.T) {
  local := captureTime.In(time.FixedZone("CET", 3600))

  got, err := atc.Decode("addr", local, mustHex(t, "aabbccddeeff00fa285a0c1c07"))

  if err != nil {
    t.Fatalf("Decode got error: %v", err)
  }

  if got.CaptureTime.Location() != time.UTC || !got.CaptureTime.Equal(captureTime) {
    t.Fatalf("Decode: got capture time %v, wanted %v", got.CaptureTime, captureTime)
  }
}
