package atc

import (
  "strings"

  "github.com/robertof/go-thermo-sync/device"
)

// ServiceUUID is the 16-bit environmental sensing service (0x181a) in canonical 128-bit form.
const ServiceUUID = "0000181a-0000-1000-8000-00805f9b34fb"

type Filter struct {
  // Canonical service UUID the thermometers advertise under. Defaults to ServiceUUID.
  ServiceUUID string
}

func (f Filter) uuid() string {
  if f.ServiceUUID == "" {
    return ServiceUUID
  }

  return strings.ToLower(f.ServiceUUID)
}

// Select returns the payload advertised under the thermometer service UUID for every device
// carrying one, keyed by device address. If an address shows up more than once the last
// record wins.
func (f Filter) Select(devices []device.Discovered) map[string][]byte {
  uuid := f.uuid()
  out := make(map[string][]byte)

  for _, dev := range devices {
    if len(dev.ServiceData) == 0 {
      continue
    }

    if payload, ok := dev.ServiceData[uuid]; ok {
      out[dev.Address] = payload
    }
  }

  return out
}
