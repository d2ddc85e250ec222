package utils

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

func ToZeroLogArray[T fmt.Stringer](arr []T) (ret *zerolog.Array) {
	ret = zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(elem.String())
	}

	return ret
}

// ToZeroLogHexDict logs binary payloads keyed by name (e.g. service data by UUID) as hex.
func ToZeroLogHexDict(m map[string][]byte) (ret *zerolog.Event) {
	ret = zerolog.Dict()

	for _, key := range SortedKeys(m) {
		ret = ret.Str(key, hex.EncodeToString(m[key]))
	}

	return ret
}
