package model

import (
	"fmt"

	"github.com/robertof/go-thermo-sync/device"
)

// Result is the outcome of decoding one payload: either a reading or the reason there is none.
type Result struct {
  Reading device.Reading
  Error error
}

func (c Result) Ok() bool {
  return c.Error == nil
}

func (c Result) String() string {
  if c.Error != nil {
    return fmt.Sprintf("result:error(%v)", c.Error)
  } else {
    return fmt.Sprintf("result:success(%v)", c.Reading)
  }
}

type DeviceResult struct {
	Address string
	Result
}

func (d DeviceResult) String() string {
  return d.Address + "=" + d.Result.String()
}

// Readings returns the successful readings of results, in order.
func Readings(results []DeviceResult) (out []device.Reading) {
  for _, r := range results {
    if r.Ok() {
      out = append(out, r.Reading)
    }
  }

  return out
}

// Failed counts the results without a reading.
func Failed(results []DeviceResult) (n int) {
  for _, r := range results {
    if !r.Ok() {
      n += 1
    }
  }

  return n
}
