package hwqueue

import "sync/atomic"

// fakeDriver models the accelerator driver as an immediate consumer: every
// doorbell ring is treated as instantly processed, so ReadIndex always
// reports the last rung write index. Good enough to exercise queue
// bookkeeping without a real backend.
type fakeDriver struct {
	reads map[int]*atomic.Uint64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{reads: make(map[int]*atomic.Uint64)}
}

func (d *fakeDriver) RingDoorbell(qid int, writeIndex uint64) error {
	r, ok := d.reads[qid]
	if !ok {
		r = &atomic.Uint64{}
		d.reads[qid] = r
	}
	r.Store(writeIndex)
	return nil
}

func (d *fakeDriver) ReadIndex(qid int) uint64 {
	r, ok := d.reads[qid]
	if !ok {
		return 0
	}
	return r.Load()
}
