package device

import (
  "fmt"
  "time"
)

// CaptureTimeLayout is the fixed-width textual form of a capture time (YYYYMMDDHHMMSS, UTC).
const CaptureTimeLayout = "20060102150405"

// Reading is a decoded thermometer advertisement. Values are never range-checked.
type Reading struct {
  // Address of the device that broadcast the advertisement.
  Address string
  // MAC embedded in the payload, 12 lowercase hex characters.
  MAC string
  CaptureTime time.Time

  // Temperature in tenths of a degree Celsius.
  TemperatureDeci uint16
  Humidity uint8
  BatteryPercent uint8
  BatteryMillivolts uint16
  Counter uint8
}

func (r Reading) Temperature() float64 {
  return float64(r.TemperatureDeci) / 10
}

// FormattedTemperature renders the temperature with exactly one fractional digit.
func (r Reading) FormattedTemperature() string {
  return fmt.Sprintf("%d.%d", r.TemperatureDeci / 10, r.TemperatureDeci % 10)
}

func (r Reading) FormattedCaptureTime() string {
  return r.CaptureTime.UTC().Format(CaptureTimeLayout)
}

func (r Reading) String() string {
  return fmt.Sprintf("Reading[Addr=%v,MAC=%v,Temperature=%v,Humidity=%d%%,Battery=%d%%/%dmV,Counter=%d]",
    r.Address, r.MAC, r.FormattedTemperature(), r.Humidity, r.BatteryPercent,
    r.BatteryMillivolts, r.Counter)
}
