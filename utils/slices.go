package utils

import (
  "sort"

  "golang.org/x/exp/maps"
)

// props to: https://stackoverflow.com/a/28058324
func Reverse[S ~[]E, E any](s S) S {
  out := make(S, len(s))
  copy(out, s)

  for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
    out[i], out[j] = out[j], out[i]
  }

  return out
}

// SortedKeys returns the keys of m in ascending order. Devices are keyed by address
// everywhere, and anything derived from them must not depend on map iteration order.
func SortedKeys[M ~map[string]V, V any](m M) []string {
  keys := maps.Keys(m)
  sort.Strings(keys)

  return keys
}
