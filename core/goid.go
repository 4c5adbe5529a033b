package core

import "runtime"

// currentGoroutineID returns the id of the calling goroutine, parsed from the
// "goroutine NNN [" header of runtime.Stack. It is only used to detect calls
// made from the worker goroutine.
func currentGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	const prefix = "goroutine "
	if len(b) <= len(prefix) {
		return 0
	}
	var id uint64
	for i := len(prefix); i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		id = id*10 + uint64(b[i]-'0')
	}
	return id
}
