package bucket

import (
	"strconv"

	"github.com/robertof/go-thermo-sync/device"
)

// Columns of a raw bucket, in order. The first line of every bucket carries them verbatim.
var Columns = []string{
	"time",
	"key",
	"mac",
	"temperature",
	"humidity",
	"battery_percentage",
	"battery_millivolts",
	"counter",
}

// HeaderLine is the header row as it appears in a bucket object.
const HeaderLine = "time,key,mac,temperature,humidity,battery_percentage,battery_millivolts,counter\n"

// Row serializes a reading as one bucket row.
func Row(r device.Reading) []string {
	return []string{
		r.FormattedCaptureTime(),
		r.Address,
		r.MAC,
		r.FormattedTemperature(),
		strconv.Itoa(int(r.Humidity)),
		strconv.Itoa(int(r.BatteryPercent)),
		strconv.Itoa(int(r.BatteryMillivolts)),
		strconv.Itoa(int(r.Counter)),
	}
}

// IsHeader reports whether fields is the header row.
func IsHeader(fields []string) bool {
	if len(fields) != len(Columns) {
		return false
	}

	for i, c := range Columns {
		if fields[i] != c {
			return false
		}
	}

	return true
}
