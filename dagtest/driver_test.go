package dagtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagee-go/dagee/internal/hsasync"
	"github.com/dagee-go/dagee/internal/hwqueue"
)

func TestRingDoorbellCompletesDispatchSignal(t *testing.T) {
	driver := NewDriver()
	q := hwqueue.NewQueue(0, 4, driver)
	driver.Attach(q)

	pool := hsasync.NewPool(hsasync.FlavorUser)
	sig := pool.Get()
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{Workgroup: [3]uint32{1, 1, 1}, GridX: 1, Completion: sig})
	require.NoError(t, q.SubmitDispatch(pkt))

	assert.True(t, sig.Reached())
}

func TestRingDoorbellInvokesRegisteredCallback(t *testing.T) {
	driver := NewDriver()
	q := hwqueue.NewQueue(0, 4, driver)
	driver.Attach(q)

	var got []byte
	driver.RegisterCallback(0x99, func(args []byte) { got = args })

	pool := hsasync.NewPool(hsasync.FlavorUser)
	pkt := hwqueue.BuildDispatchPacket(hwqueue.DispatchSpec{
		CodeAddr: 0x99, Workgroup: [3]uint32{1, 1, 1}, GridX: 1,
		ArgBuffer: []byte{7, 8}, Completion: pool.Get(),
	})
	require.NoError(t, q.SubmitDispatch(pkt))
	assert.Equal(t, []byte{7, 8}, got)
}
