package transform_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/store"
	"github.com/robertof/go-thermo-sync/transform"
)

const rawBucket = bucket.HeaderLine +
	"20240309140507,A4:C1:38:00:00:01,aabbccddeeff,25.0,40,90,3100,7\n" +
	"20240309140507,A4:C1:38:00:00:02,a4c138000002,19.5,55,100,3300,255\n"

var wantRecords = []transform.Record{
	{
		Time:              "20240309140507",
		Key:               "A4:C1:38:00:00:01",
		MAC:               "aabbccddeeff",
		Temperature:       25.0,
		Humidity:          40,
		BatteryPercentage: 90,
		BatteryMillivolts: 3100,
		Counter:           7,
	},
	{
		Time:              "20240309140507",
		Key:               "A4:C1:38:00:00:02",
		MAC:               "a4c138000002",
		Temperature:       19.5,
		Humidity:          55,
		BatteryPercentage: 100,
		BatteryMillivolts: 3300,
		Counter:           255,
	},
}

func seed(t *testing.T, objects map[string]string) *store.Memory {
	t.Helper()

	m := store.NewMemory()

	for key, content := range objects {
		if err := m.Put(context.Background(), key, []byte(content)); err != nil {
			t.Fatalf("Put(%q): %v", key, err)
		}
	}

	return m
}

func decodeJSONLines(t *testing.T, data []byte) (out []transform.Record) {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(data))

	for {
		var r transform.Record
		if err := dec.Decode(&r); err == io.EOF {
			return out
		} else if err != nil {
			t.Fatalf("json decode: %v", err)
		}
		out = append(out, r)
	}
}

func TestConvert(t *testing.T) {
	got, skipped, err := transform.Convert("in/20240309.csv", []byte(rawBucket))

	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if skipped != 0 {
		t.Fatalf("Convert: skipped %d rows", skipped)
	}

	if !reflect.DeepEqual(got, wantRecords) {
		t.Fatalf("Convert: got %+#v, wanted %+#v", got, wantRecords)
	}
}

func TestConvert_SkipsMalformedRows(t *testing.T) {
	raw := bucket.HeaderLine +
		"20240309140507,A4:C1:38:00:00:01,aabbccddeeff,25.0,40,90,3100,7\n" +
		"garbage\n" +
		"20240309140507,x,y,not-a-number,1,1,1,1\n" +
		"20240309140507,A4:C1:38:00:00:02,a4c138000002,19.5,55,100,3300,255\n"

	got, skipped, err := transform.Convert("in/20240309.csv", []byte(raw))

	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if skipped != 2 {
		t.Fatalf("Convert: got %d skipped rows, wanted 2", skipped)
	}

	if !reflect.DeepEqual(got, wantRecords) {
		t.Fatalf("Convert: got %+#v, wanted %+#v", got, wantRecords)
	}
}

func TestConvert_HeaderOnly(t *testing.T) {
	got, skipped, err := transform.Convert("in/20240309.csv", []byte(bucket.HeaderLine))

	if err != nil || skipped != 0 || len(got) != 0 {
		t.Fatalf("Convert(header only): got (%v, %d, %v)", got, skipped, err)
	}
}

func TestConvert_MissingHeaderKeepsFirstRow(t *testing.T) {
	raw := "20240309140507,A4:C1:38:00:00:01,aabbccddeeff,25.0,40,90,3100,7\n"

	got, _, err := transform.Convert("in/20240309.csv", []byte(raw))

	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if !reflect.DeepEqual(got, wantRecords[:1]) {
		t.Fatalf("Convert: got %+#v, wanted %+#v", got, wantRecords[:1])
	}
}

func TestStage_Run(t *testing.T) {
	m := seed(t, map[string]string{
		"in/20240309.csv":   rawBucket,
		"in/20240310.csv":   bucket.HeaderLine,
		"in/README.txt":     "not a bucket",
		"out/unrelated.txt": "left alone",
	})

	stage, err := transform.New(m, bucket.Layout{}, transform.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantReport := transform.Report{Objects: []transform.ObjectReport{
		{Input: "in/20240309.csv", Output: "out/20240309.jsonl", Records: 2},
		{Input: "in/20240310.csv", Output: "out/20240310.jsonl", Records: 0},
	}}

	if !reflect.DeepEqual(report, wantReport) {
		t.Fatalf("Run: got %+#v, wanted %+#v", report, wantReport)
	}

	out, ok := m.Snapshot("out/20240309.jsonl")
	if !ok {
		t.Fatal("out/20240309.jsonl was not published")
	}

	if got := decodeJSONLines(t, out); !reflect.DeepEqual(got, wantRecords) {
		t.Fatalf("published records: got %+#v, wanted %+#v", got, wantRecords)
	}

	// the raw input is only read
	if in, _ := m.Snapshot("in/20240309.csv"); string(in) != rawBucket {
		t.Fatalf("input bucket was modified: %q", in)
	}
}

func TestStage_RerunRepublishesSameRecords(t *testing.T) {
	m := seed(t, map[string]string{"in/20240309.csv": rawBucket})

	stage, err := transform.New(m, bucket.Layout{}, transform.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	first, _ := m.Snapshot("out/20240309.jsonl")
	putsAfterFirst := m.Puts()

	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	second, _ := m.Snapshot("out/20240309.jsonl")

	// no watermark: the second run republishes everything and yields the same records.
	if m.Puts() != putsAfterFirst+1 {
		t.Fatalf("second run published %d objects, wanted 1", m.Puts()-putsAfterFirst)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("outputs differ between runs:\n%s\n---\n%s", first, second)
	}
}

func TestStage_CBORZstd(t *testing.T) {
	m := seed(t, map[string]string{"in/20240309.csv": rawBucket})

	stage, err := transform.New(m, bucket.Layout{}, transform.Options{
		Format:      transform.FormatCBOR,
		Compression: transform.CompressionZstd,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	compressed, ok := m.Snapshot("out/20240309.cbor.zst")
	if !ok {
		t.Fatal("out/20240309.cbor.zst was not published")
	}

	zr, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer zr.Close()

	raw, err := zr.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}

	var got []transform.Record
	dec := cbor.NewDecoder(bytes.NewReader(raw))

	for {
		var r transform.Record
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("cbor decode: %v", err)
		}
		got = append(got, r)
	}

	if !reflect.DeepEqual(got, wantRecords) {
		t.Fatalf("published records: got %+#v, wanted %+#v", got, wantRecords)
	}
}

func TestStage_StoreFailureAborts(t *testing.T) {
	m := seed(t, map[string]string{"in/20240309.csv": rawBucket})
	m.FailGet = func(string) error {
		return fmt.Errorf("denied: %w", store.ErrPermission)
	}

	stage, err := transform.New(m, bucket.Layout{}, transform.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := stage.Run(context.Background()); !errors.Is(err, store.ErrPermission) {
		t.Fatalf("Run: got %v, wanted ErrPermission", err)
	}

	if _, ok := m.Snapshot("out/20240309.jsonl"); ok {
		t.Fatal("output published despite failed fetch")
	}
}

func TestNew_RejectsUnknownOptions(t *testing.T) {
	if _, err := transform.New(store.NewMemory(), bucket.Layout{}, transform.Options{Format: "xml"}); err == nil {
		t.Fatal("New accepted format xml")
	}

	if _, err := transform.New(store.NewMemory(), bucket.Layout{}, transform.Options{Compression: "lzma"}); err == nil {
		t.Fatal("New accepted compression lzma")
	}
}
