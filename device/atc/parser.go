package atc

import (
  "encoding/binary"
  "encoding/hex"
  "time"

  "github.com/pkg/errors"
  "github.com/robertof/go-thermo-sync/device"
)

// PayloadLength is the minimum size of a thermometer service-data payload. Trailing bytes are
// ignored.
const PayloadLength = 13

// Decode parses the service data broadcast under the environmental sensing UUID. Layout,
// big-endian:
//
//   0..5   MAC
//   6..7   temperature (0.1 °C)
//   8      humidity (%)
//   9      battery (%)
//   10..11 battery (mV)
//   12     frame counter
func Decode(addr string, captureTime time.Time, data []byte) (reading device.Reading, err error) {
  if len(data) < PayloadLength {
    return reading, errors.Wrapf(device.ErrInsufficientPayload,
      "atc: got %d bytes, want >= %d", len(data), PayloadLength)
  }

  bo := binary.BigEndian

  reading.Address = addr
  reading.CaptureTime = captureTime.UTC()
  reading.MAC = hex.EncodeToString(data[0:6])
  reading.TemperatureDeci = bo.Uint16(data[6:])
  reading.Humidity = data[8]
  reading.BatteryPercent = data[9]
  reading.BatteryMillivolts = bo.Uint16(data[10:])
  reading.Counter = data[12]

  return reading, nil
}
