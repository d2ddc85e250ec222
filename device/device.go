package device

import (
  "errors"
  "fmt"
  "sort"
)

var (
  ErrInvalidData = errors.New("invalid data")
  ErrInsufficientPayload = errors.New("insufficient payload")
)

// Discovered is a device seen during a scan window, with the service data it advertised keyed
// by canonical (lowercase, 128-bit) service UUID. ServiceData may be nil.
type Discovered struct {
  Address string
  Name string
  ServiceData map[string][]byte
}

func (d Discovered) String() string {
  uuids := make([]string, 0, len(d.ServiceData))

  for uuid := range d.ServiceData {
    uuids = append(uuids, uuid)
  }

  sort.Strings(uuids)

  return fmt.Sprintf("device[addr=%v, name=%q, services=%v]", d.Address, d.Name, uuids)
}
