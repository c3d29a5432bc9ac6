package util

import (
	"fmt"
)

// SafeRewrite wraps a rewrite such that panics are recovered and nice error messages are constructed
func SafeRewrite(name string, rewrite func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if anErr, ok := r.(error); ok {
					err = fmt.Errorf("Rewrite Panic: %w\nRewrite: %s\n%s", anErr, name, GetTrace())
				} else {
					err = fmt.Errorf("Rewrite Panic: %v\nRewrite: %s\n%s", r, name, GetTrace())
				}
			}
		}()
		err = rewrite()
		return
	}
}
