package transform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/device"
)

var errMalformedRow = errors.New("malformed row")

// Record is the normalized form of one raw bucket row. Field names mirror the bucket columns.
type Record struct {
	Time              string  `json:"time"`
	Key               string  `json:"key"`
	MAC               string  `json:"mac"`
	Temperature       float64 `json:"temperature"`
	Humidity          int     `json:"humidity"`
	BatteryPercentage int     `json:"battery_percentage"`
	BatteryMillivolts int     `json:"battery_millivolts"`
	Counter           int     `json:"counter"`
}

// ToRecord maps a row's positional fields onto their names.
func ToRecord(fields []string) (rec Record, err error) {
	if len(fields) != len(bucket.Columns) {
		return rec, errors.Wrapf(errMalformedRow, "got %d fields, want %d", len(fields), len(bucket.Columns))
	}

	if _, err := time.Parse(device.CaptureTimeLayout, fields[0]); err != nil {
		return rec, errors.Wrapf(errMalformedRow, "time %q", fields[0])
	}

	rec.Time = fields[0]
	rec.Key = fields[1]
	rec.MAC = fields[2]

	if rec.Temperature, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return rec, errors.Wrapf(errMalformedRow, "temperature %q", fields[3])
	}

	ints := []*int{&rec.Humidity, &rec.BatteryPercentage, &rec.BatteryMillivolts, &rec.Counter}

	for i, dst := range ints {
		field := fields[4+i]

		if *dst, err = strconv.Atoi(field); err != nil {
			return rec, errors.Wrapf(errMalformedRow, "%s %q", bucket.Columns[4+i], field)
		}
	}

	return rec, nil
}

func (r Record) String() string {
	return fmt.Sprintf("Record[%s %s %s %.1f]", r.Time, r.Key, r.MAC, r.Temperature)
}
