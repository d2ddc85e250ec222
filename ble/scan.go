package ble

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "sync"
  "time"

  "github.com/go-ble/ble"
  "github.com/rs/zerolog/log"

  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/utils"
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and return every advertisement found.
func (h *Handle) ScanAll(ctx context.Context, onDevice func(Advertisement)) error {
  err := h.dev.Scan(ctx, h.allowDup, onDevice)

  if err != nil {
    return fmt.Errorf("failed to initiate scan: %w", err)
  }

  return nil
}

// discoveries merges the advertisements of one scan window per device address.
type discoveries struct {
  mu sync.Mutex
  devices map[string]*device.Discovered
}

func newDiscoveries() *discoveries {
  return &discoveries{devices: make(map[string]*device.Discovered)}
}

func (d *discoveries) observe(a Advertisement) {
  addr := strings.ToLower(a.Addr().String())

  d.mu.Lock()
  defer d.mu.Unlock()

  dev, ok := d.devices[addr]

  if !ok {
    dev = &device.Discovered{Address: addr}
    d.devices[addr] = dev
  }

  if dev.Name == "" {
    dev.Name = a.LocalName()
  }

  // later advertisements carry fresher data: overwrite per service UUID.
  for _, sd := range a.ServiceData() {
    if dev.ServiceData == nil {
      dev.ServiceData = make(map[string][]byte)
    }

    dev.ServiceData[CanonicalUUID(sd.UUID)] = append([]byte(nil), sd.Data...)
  }
}

// list returns the devices sorted by address.
func (d *discoveries) list() []device.Discovered {
  d.mu.Lock()
  defer d.mu.Unlock()

  addrs := utils.SortedKeys(d.devices)

  out := make([]device.Discovered, 0, len(addrs))

  for _, addr := range addrs {
    out = append(out, *d.devices[addr])
  }

  return out
}

// Discover scans for the whole window and returns every device seen, with the service data it
// advertised last.
func (h *Handle) Discover(ctx context.Context, window time.Duration) ([]device.Discovered, error) {
  scanCtx, cancel := context.WithTimeout(ctx, window)
  defer cancel()

  found := newDiscoveries()

  err := h.ScanAll(scanCtx, func(a Advertisement) {
    advertisementsCounter.Inc()

    log.Trace().
      Str("Addr", a.Addr().String()).
      Str("LocalName", a.LocalName()).
      Int("RSSI", a.RSSI()).
      Msg("ble: received advertisement")

    found.observe(a)
  })

  // the window elapsing is how a scan normally ends.
  if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
    return nil, err
  }

  if err := ctx.Err(); err != nil {
    return nil, err
  }

  devices := found.list()
  devicesDiscoveredCounter.Add(float64(len(devices)))

  log.Debug().
    Dur("Window", window).
    Int("Devices", len(devices)).
    Msg("ble: scan window closed")

  return devices, nil
}
