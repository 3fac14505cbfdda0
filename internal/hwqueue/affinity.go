package hwqueue

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinDispatcher locks the calling goroutine to its OS thread and, when
// cpus is non-empty, binds that thread to the CPU picked for queueID by
// round-robin over cpus, so a dispatcher's spin-wait does not migrate
// across cores. The returned undo releases the thread lock. A failed
// affinity call is reported but not fatal: the dispatcher keeps running
// unpinned.
func PinDispatcher(queueID int, cpus []int) (undo func(), err error) {
	runtime.LockOSThread()
	if len(cpus) > 0 {
		var mask unix.CPUSet
		mask.Set(cpus[queueID%len(cpus)])
		err = unix.SchedSetaffinity(0, &mask)
	}
	return runtime.UnlockOSThread, err
}
