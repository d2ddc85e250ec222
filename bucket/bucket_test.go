package bucket_test

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/device"
)

func TestKeyFor(t *testing.T) {
	cases := map[time.Time]bucket.Key{
		time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC):                            "20240309",
		time.Date(2024, 3, 9, 23, 59, 59, 999, time.UTC):                       "20240309",
		time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC):                        "20241231",
		time.Date(2024, 3, 10, 0, 30, 0, 0, time.FixedZone("CET", 3600)):       "20240309",
		time.Date(2024, 3, 9, 22, 30, 0, 0, time.FixedZone("EST", -5 * 3600)): "20240310",
	}

	for in, want := range cases {
		if got := bucket.KeyFor(in); got != want {
			t.Fatalf("KeyFor(%v): got %q, wanted %q", in, got, want)
		}
	}
}

func TestLayout_Names(t *testing.T) {
	l := bucket.Layout{ScratchDir: "/var/tmp/thermo"}
	k := bucket.Key("20240309")

	if got := l.RemoteKey(k); got != "in/20240309.csv" {
		t.Fatalf("RemoteKey(%q): got %q", k, got)
	}

	if got, want := l.LocalPath(k), filepath.Join("/var/tmp/thermo", "20240309.csv"); got != want {
		t.Fatalf("LocalPath(%q): got %q, wanted %q", k, got, want)
	}

	if got := l.OutputKey("in/20240309.csv", ".jsonl"); got != "out/20240309.jsonl" {
		t.Fatalf("OutputKey: got %q", got)
	}

	// deterministic
	if l.RemoteKey(k) != l.RemoteKey(bucket.KeyFor(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))) {
		t.Fatal("RemoteKey is not stable across calls for the same day")
	}
}

func TestLayout_CustomPrefixes(t *testing.T) {
	l := bucket.Layout{InputPrefix: "raw/", OutputPrefix: "normalized/"}

	if got := l.RemoteKey("20240309"); got != "raw/20240309.csv" {
		t.Fatalf("RemoteKey: got %q", got)
	}

	if got := l.OutputKey("raw/20240309.csv", ".cbor.zst"); got != "normalized/20240309.cbor.zst" {
		t.Fatalf("OutputKey: got %q", got)
	}
}

func TestLayout_KeyFromRemote(t *testing.T) {
	l := bucket.Layout{}

	if k, ok := l.KeyFromRemote("in/20240309.csv"); !ok || k != "20240309" {
		t.Fatalf("KeyFromRemote: got (%q, %v)", k, ok)
	}

	for _, bad := range []string{"in/", "in/notes.txt", "out/20240309.csv", "in/2024-03-09.csv"} {
		if _, ok := l.KeyFromRemote(bad); ok {
			t.Fatalf("KeyFromRemote(%q): expected rejection", bad)
		}
	}
}

func TestRow(t *testing.T) {
	r := device.Reading{
		Address:           "A4:C1:38:00:00:01",
		MAC:               "aabbccddeeff",
		CaptureTime:       time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
		TemperatureDeci:   7,
		Humidity:          40,
		BatteryPercent:    90,
		BatteryMillivolts: 3100,
		Counter:           255,
	}

	got := bucket.Row(r)
	want := []string{"20240309140507", "A4:C1:38:00:00:01", "aabbccddeeff", "0.7", "40", "90", "3100", "255"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Row(): got %+#v, wanted %+#v", got, want)
	}
}

func TestHeader(t *testing.T) {
	if !bucket.IsHeader(bucket.Columns) {
		t.Fatal("IsHeader(Columns) = false")
	}

	if got := strings.Join(bucket.Columns, ",") + "\n"; got != bucket.HeaderLine {
		t.Fatalf("HeaderLine mismatch: %q vs %q", got, bucket.HeaderLine)
	}

	if bucket.IsHeader([]string{"20240309140507", "a", "b", "1.0", "1", "1", "1", "1"}) {
		t.Fatal("IsHeader accepted a data row")
	}
}
