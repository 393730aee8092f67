package utils

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}
