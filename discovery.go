package main

import (
  "context"
  "errors"

  "github.com/rs/zerolog/log"

  "github.com/robertof/go-thermo-sync/ble"
  "github.com/robertof/go-thermo-sync/device/atc"
  "github.com/robertof/go-thermo-sync/utils"
)

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("WindowSec", cfg.ScanWindow).
    Msg("Starting in device discovery mode")

  handle, err := ble.Init(cfg.BluetoothDeviceId, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer handle.Stop()

  ctx := ble.WrapContextWithSigHandler(context.WithCancel(context.Background()))

  devices, err := handle.Discover(ctx, cfg.ScanWindow)

  if err != nil && !errors.Is(err, context.Canceled) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  thermometers := atc.Filter{ServiceUUID: cfg.ServiceUUID}.Select(devices)

  log.Info().
    Int("Found", len(devices)).
    Int("Thermometers", len(thermometers)).
    Msg("Finished device discovery")

  for _, dev := range devices {
    _, isThermometer := thermometers[dev.Address]

    log.Info().
      Str("Addr", dev.Address).
      Str("Name", dev.Name).
      Bool("Thermometer", isThermometer).
      Strs("Services", utils.SortedKeys(dev.ServiceData)).
      Dict("ServiceData", utils.ToZeroLogHexDict(dev.ServiceData)).
      Msg("Found device")
  }
}
