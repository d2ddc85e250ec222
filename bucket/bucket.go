// Package bucket maps capture times to day buckets and day buckets to local and remote names.
package bucket

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// KeyLayout is the textual form of a bucket key (YYYYMMDD, UTC).
	KeyLayout = "20060102"

	DefaultInputPrefix  = "in/"
	DefaultOutputPrefix = "out/"
	Extension           = ".csv"
)

// Key identifies one UTC calendar day of readings.
type Key string

// KeyFor truncates t to its UTC calendar date.
func KeyFor(t time.Time) Key {
	return Key(t.UTC().Format(KeyLayout))
}

func (k Key) String() string {
	return string(k)
}

// Valid reports whether k is a well-formed YYYYMMDD date.
func (k Key) Valid() bool {
	_, err := time.Parse(KeyLayout, string(k))
	return err == nil
}

// Layout derives every name a bucket has. Identical keys always yield identical names, which is
// what joins successive cycles of the same day.
type Layout struct {
	ScratchDir   string
	InputPrefix  string
	OutputPrefix string
}

func (l Layout) inputPrefix() string {
	if l.InputPrefix == "" {
		return DefaultInputPrefix
	}
	return l.InputPrefix
}

func (l Layout) outputPrefix() string {
	if l.OutputPrefix == "" {
		return DefaultOutputPrefix
	}
	return l.OutputPrefix
}

// InputNamespace is the prefix raw buckets live under.
func (l Layout) InputNamespace() string {
	return l.inputPrefix()
}

// RemoteKey returns the object key of a raw bucket, e.g. in/20240309.csv.
func (l Layout) RemoteKey(k Key) string {
	return l.inputPrefix() + string(k) + Extension
}

// LocalPath returns the scratch path of the working copy of a bucket.
func (l Layout) LocalPath(k Key) string {
	dir := l.ScratchDir
	if dir == "" {
		dir = "tmp"
	}
	return filepath.Join(dir, string(k)+Extension)
}

// KeyFromRemote is the inverse of RemoteKey. ok is false for objects that are not raw buckets.
func (l Layout) KeyFromRemote(remoteKey string) (k Key, ok bool) {
	prefix := l.inputPrefix()

	if !strings.HasPrefix(remoteKey, prefix) || !strings.HasSuffix(remoteKey, Extension) {
		return "", false
	}

	k = Key(strings.TrimSuffix(strings.TrimPrefix(remoteKey, prefix), Extension))
	if !k.Valid() {
		return "", false
	}

	return k, true
}

// OutputKey mirrors a raw bucket's object key into the output namespace, replacing the
// extension, e.g. in/20240309.csv -> out/20240309.jsonl.
func (l Layout) OutputKey(remoteKey, ext string) string {
	name := strings.TrimPrefix(remoteKey, l.inputPrefix())
	name = strings.TrimSuffix(name, path.Ext(name))

	return l.outputPrefix() + name + ext
}
