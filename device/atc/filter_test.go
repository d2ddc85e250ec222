package atc_test

import (
  "reflect"
  "testing"

  "github.com/robertof/go-thermo-sync/device"
  "github.com/robertof/go-thermo-sync/device/atc"
)

func TestFilter_SelectsThermometers(t *testing.T) {
  devices := []device.Discovered{
    {Address: "a", ServiceData: map[string][]byte{atc.ServiceUUID: {0x01}}},
    {Address: "b"},
    {Address: "c", ServiceData: map[string][]byte{atc.ServiceUUID: {0x03}}},
    {Address: "d", ServiceData: map[string][]byte{"0000fe95-0000-1000-8000-00805f9b34fb": {0x04}}},
    {Address: "e", ServiceData: map[string][]byte{atc.ServiceUUID: {0x05}}},
  }

  got := atc.Filter{}.Select(devices)
  want := map[string][]byte{
    "a": {0x01},
    "c": {0x03},
    "e": {0x05},
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("Select(): got %+#v, wanted %+#v", got, want)
  }
}

func TestFilter_PicksRecognizedKeyAmongMany(t *testing.T) {
  // several entries in the map: the payload must come from the thermometer key, whatever
  // the iteration order.
  devices := []device.Discovered{{
    Address: "a",
    ServiceData: map[string][]byte{
      "0000fe95-0000-1000-8000-00805f9b34fb": {0xee},
      atc.ServiceUUID:                        {0x01},
      "0000fcd2-0000-1000-8000-00805f9b34fb": {0xdd},
    },
  }}

  for i := 0; i < 20; i++ {
    got := atc.Filter{}.Select(devices)

    if !reflect.DeepEqual(got, map[string][]byte{"a": {0x01}}) {
      t.Fatalf("Select(): got %+#v", got)
    }
  }
}

func TestFilter_DuplicateAddressLastWins(t *testing.T) {
  devices := []device.Discovered{
    {Address: "a", ServiceData: map[string][]byte{atc.ServiceUUID: {0x01}}},
    {Address: "a", ServiceData: map[string][]byte{atc.ServiceUUID: {0x02}}},
  }

  got := atc.Filter{}.Select(devices)

  if !reflect.DeepEqual(got, map[string][]byte{"a": {0x02}}) {
    t.Fatalf("Select(): got %+#v", got)
  }
}

func TestFilter_CustomServiceUUID(t *testing.T) {
  custom := "0000fcd2-0000-1000-8000-00805f9b34fb"
  devices := []device.Discovered{
    {Address: "a", ServiceData: map[string][]byte{atc.ServiceUUID: {0x01}}},
    {Address: "b", ServiceData: map[string][]byte{custom: {0x02}}},
  }

  got := atc.Filter{ServiceUUID: "0000FCD2-0000-1000-8000-00805F9B34FB"}.Select(devices)

  if !reflect.DeepEqual(got, map[string][]byte{"b": {0x02}}) {
    t.Fatalf("Select(): got %+#v", got)
  }
}
