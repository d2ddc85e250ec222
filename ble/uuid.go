package ble

import (
  "encoding/hex"
  "fmt"

  "github.com/go-ble/ble"
  "github.com/robertof/go-thermo-sync/utils"
)

// Bluetooth base UUID, minus the leading 32 bits.
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// CanonicalUUID renders u in the lowercase dashed 128-bit form, expanding 16 and 32-bit UUIDs
// onto the Bluetooth base UUID. go-ble stores UUIDs little-endian.
func CanonicalUUID(u ble.UUID) string {
  b := hex.EncodeToString(utils.Reverse([]byte(u)))

  switch len(b) {
  case 4:
    return "0000" + b + baseUUIDSuffix
  case 8:
    return b + baseUUIDSuffix
  case 32:
    return b[0:8] + "-" + b[8:12] + "-" + b[12:16] + "-" + b[16:20] + "-" + b[20:]
  default:
    return b
  }
}

// ParseUUID accepts any textual form go-ble understands (16, 32 or 128-bit, with or without
// dashes) and returns its canonical form.
func ParseUUID(s string) (string, error) {
  u, err := ble.Parse(s)

  if err != nil {
    return "", fmt.Errorf("invalid service UUID %q: %w", s, err)
  }

  return CanonicalUUID(u), nil
}
