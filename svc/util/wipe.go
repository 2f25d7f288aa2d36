package util

import "runtime"

// Wipe zeroes secret material in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
