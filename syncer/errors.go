package syncer

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrLocalIO marks failures of the local working copy (disk full, permissions, ...).
var ErrLocalIO = errors.New("local I/O failure")

func localIOError(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(fmt.Errorf("%w: %v", ErrLocalIO, err), format, args...)
}
