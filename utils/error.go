package utils

import "errors"

func ErrorIsAnyOf(err error, targets... error) bool {
	return FirstMatching(err, targets...) != nil
}

// FirstMatching returns the first of targets that err wraps, or nil.
func FirstMatching(err error, targets... error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}

	return nil
}
