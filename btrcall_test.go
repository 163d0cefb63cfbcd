package btrcall_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkfoss/btrcall"
	"github.com/mkfoss/btrcall/pkg/btrtest"
)

func newTestBridge(t *testing.T, rec *btrtest.Recorder) (*btrcall.Bridge, *btrtest.Allocator) {
	t.Helper()
	alloc := btrtest.NewAllocator()
	b, err := btrcall.New(btrcall.WithBinding(rec), btrcall.WithAllocator(alloc))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.Zero(t, alloc.Outstanding(), "native regions leaked")
		assert.Zero(t, alloc.DoubleFrees(), "native regions freed twice")
	})
	return b, alloc
}

func u32(v uint32) *uint32 { return &v }

// TestPositionBlockLengthIsChecked verifies that only 128-byte blocks are accepted
func TestPositionBlockLengthIsChecked(t *testing.T) {
	rec := btrtest.NewRecorder()
	b, alloc := newTestBridge(t, rec)

	for _, size := range []int{0, 1, 127, 129, 256} {
		var length uint32
		_, err := b.Invoke(btrcall.Stat, make([]byte, size), nil, &length, nil, 0)
		require.ErrorIs(t, err, btrcall.ErrPositionBlockLength, "size %d", size)
	}

	_, err := b.Invoke(btrcall.Stat, nil, nil, nil, nil, 0)
	require.ErrorIs(t, err, btrcall.ErrPositionBlockLength)

	assert.Empty(t, rec.Calls(), "binding must not run on precondition failure")
	assert.Zero(t, alloc.Allocs(), "nothing may be allocated on precondition failure")
}

// TestDeclaredLengthMustFitBuffer verifies the capacity precondition
func TestDeclaredLengthMustFitBuffer(t *testing.T) {
	rec := btrtest.NewRecorder()
	b, _ := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	_, err := b.Invoke(btrcall.AcquireFirst, pos.Bytes(), make([]byte, 16), u32(17), nil, 0)
	require.ErrorIs(t, err, btrcall.ErrDataLength)
	assert.Empty(t, rec.Calls())
}

// TestInputsReachEngine verifies what the engine sees for a fully populated call
func TestInputsReachEngine(t *testing.T) {
	rec := btrtest.NewRecorder()
	b, _ := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	for i := range pos {
		pos[i] = byte(i)
	}
	data := []byte("record payload")
	key := []byte("key!")
	length := uint32(len(data))

	rc, err := b.Invoke(btrcall.Insert, pos.Bytes(), data, &length, key, 3)
	require.NoError(t, err)
	assert.Equal(t, btrcall.Success, rc)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Equal(t, btrcall.Insert, c.Operation)
	assert.Equal(t, pos[:], c.PositionBlock)
	assert.Equal(t, data, c.Data)
	assert.Equal(t, uint32(len(data)), c.DataLength)
	assert.Equal(t, key, c.Key)
	assert.Equal(t, uint8(4), c.KeyLength)
	assert.Equal(t, btrcall.KeyNumber(3), c.KeyNumber)
}

// TestPositionBlockRoundTrip verifies engine changes to the block reach the caller byte for byte
func TestPositionBlockRoundTrip(t *testing.T) {
	mutated := bytes.Repeat([]byte{0xA5}, btrcall.PositionBlockLength)
	mutated[0] = 0x01
	rec := btrtest.NewRecorder(btrtest.Step{PositionBlock: mutated})
	b, _ := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	_, err := b.Invoke(btrcall.Open, pos.Bytes(), nil, u32(0), btrcall.PathKey("f.dat"), 0)
	require.NoError(t, err)
	assert.Equal(t, mutated, pos.Bytes())

	// an untouched block comes back unchanged
	before := pos
	_, err = b.Invoke(btrcall.Stat, pos.Bytes(), nil, u32(0), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, before, pos)
}

// TestKeyIsCappedAt255 verifies long key buffers are truncated in both directions
func TestKeyIsCappedAt255(t *testing.T) {
	reply := bytes.Repeat([]byte{0xEE}, 300)
	rec := btrtest.NewRecorder(btrtest.Step{Key: reply})
	b, _ := newTestBridge(t, rec)

	key := make([]byte, 300)
	for i := range key {
		key[i] = byte(i % 251)
	}
	original := bytes.Clone(key)

	var pos btrcall.PositionBlock
	_, err := b.Invoke(btrcall.AcquireEqual, pos.Bytes(), nil, u32(0), key, 0)
	require.NoError(t, err)

	c := rec.Calls()[0]
	assert.Equal(t, uint8(btrcall.MaxKeyLength), c.KeyLength)
	assert.Equal(t, original[:btrcall.MaxKeyLength], c.Key)

	assert.Equal(t, reply[:btrcall.MaxKeyLength], key[:btrcall.MaxKeyLength])
	assert.Equal(t, original[btrcall.MaxKeyLength:], key[btrcall.MaxKeyLength:], "bytes past 255 must not be written")
}

// TestReturnedLengthNeverExceedsCapacity verifies the length clamp and the partial copy
func TestReturnedLengthNeverExceedsCapacity(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 64)
	rec := btrtest.NewRecorder(
		btrtest.Step{Data: payload, DataLength: u32(10_000)},
		btrtest.Step{Data: payload, DataLength: u32(5)},
	)
	b, _ := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	data := make([]byte, 64)
	length := uint32(32)
	_, err := b.Invoke(btrcall.AcquireFirst, pos.Bytes(), data, &length, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), length)
	assert.Equal(t, payload[:32], data[:32])
	assert.Equal(t, make([]byte, 32), data[32:], "bytes past the declared capacity must not be written")

	data = make([]byte, 64)
	length = uint32(len(data))
	_, err = b.Invoke(btrcall.AcquireNext, pos.Bytes(), data, &length, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), length)
	assert.Equal(t, payload[:5], data[:5])
	assert.Equal(t, make([]byte, 59), data[5:], "only the produced bytes are copied back")
}

// TestNullBuffers verifies absent buffers travel as null pointers
func TestNullBuffers(t *testing.T) {
	rec := btrtest.NewRecorder()
	b, _ := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	length := uint32(77)
	_, err := b.Invoke(btrcall.Close, pos.Bytes(), nil, &length, nil, 0)
	require.NoError(t, err)

	_, err = b.Invoke(btrcall.Close, pos.Bytes(), []byte{}, nil, []byte{}, 0)
	require.NoError(t, err)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Nil(t, calls[0].Data)
	assert.Nil(t, calls[0].Key)
	assert.Zero(t, calls[0].KeyLength)
	assert.Equal(t, uint32(77), calls[0].DataLength, "capacity travels even without a buffer")
	assert.Nil(t, calls[1].Data)
	assert.Nil(t, calls[1].Key)
	assert.Zero(t, calls[1].DataLength)
}

// TestPathKeyIsTerminated verifies the key region holds a NUL after the path
func TestPathKeyIsTerminated(t *testing.T) {
	var seen []byte
	binding := btrcall.BindingFunc(func(f *btrcall.Frame) btrcall.ResponseCode {
		// one byte past the caller's buffer is still inside the region
		seen = bytes.Clone(f.Key[:len(f.Key)+1])
		return btrcall.Success
	})
	alloc := btrtest.NewAllocator()
	b, err := btrcall.New(btrcall.WithBinding(binding), btrcall.WithAllocator(alloc))
	require.NoError(t, err)

	var pos btrcall.PositionBlock
	raw := []byte(`c:\bbsv10\wgserv2.dat`)
	_, err = b.Invoke(btrcall.Open, pos.Bytes(), nil, u32(0), raw, btrcall.OpenNormal)
	require.NoError(t, err)
	assert.Equal(t, append(bytes.Clone(raw), 0), seen)
	assert.Zero(t, alloc.Outstanding())
}

// TestEngineStatusIsNotAnError verifies nonzero codes pass through verbatim
func TestEngineStatusIsNotAnError(t *testing.T) {
	codes := []btrcall.ResponseCode{btrcall.FileNotOpen, btrcall.EndOfFile, btrcall.ResponseCode(9999), btrcall.ResponseCode(-7)}
	steps := make([]btrtest.Step, len(codes))
	for i, c := range codes {
		steps[i] = btrtest.Step{Code: c}
	}
	b, _ := newTestBridge(t, btrtest.NewRecorder(steps...))

	var pos btrcall.PositionBlock
	for _, want := range codes {
		rc, err := b.Invoke(btrcall.Close, pos.Bytes(), nil, nil, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, want, rc)
	}
}

// TestRegionsReleasedOnPanic verifies the arena releases memory when the engine faults
func TestRegionsReleasedOnPanic(t *testing.T) {
	rec := btrtest.NewRecorder(btrtest.Step{Panic: "engine fault"})
	b, alloc := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	assert.PanicsWithValue(t, "engine fault", func() {
		_, _ = b.Invoke(btrcall.Insert, pos.Bytes(), make([]byte, 8), u32(8), make([]byte, 4), 0)
	})
	assert.Equal(t, 4, alloc.Allocs())
	assert.Equal(t, 4, alloc.Frees())
}

// TestAllocationFailure verifies partial acquisitions are released and reported
func TestAllocationFailure(t *testing.T) {
	for failAfter := 1; failAfter <= 3; failAfter++ {
		rec := btrtest.NewRecorder()
		alloc := btrtest.NewAllocator()
		alloc.FailAfter = failAfter
		b, err := btrcall.New(btrcall.WithBinding(rec), btrcall.WithAllocator(alloc))
		require.NoError(t, err)

		var pos btrcall.PositionBlock
		_, err = b.Invoke(btrcall.Insert, pos.Bytes(), make([]byte, 8), u32(8), make([]byte, 4), 0)
		require.ErrorIs(t, err, btrcall.ErrAlloc)
		assert.Empty(t, rec.Calls())
		assert.Zero(t, alloc.Outstanding(), "failAfter=%d", failAfter)
		assert.Equal(t, failAfter, alloc.Frees())
	}
}

// TestEveryCallReleasesItsRegions verifies each call frees exactly what it took
func TestEveryCallReleasesItsRegions(t *testing.T) {
	rec := btrtest.NewRecorder()
	b, alloc := newTestBridge(t, rec)

	var pos btrcall.PositionBlock
	_, err := b.Invoke(btrcall.Stat, pos.Bytes(), nil, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.Allocs(), "position block and length cell")

	_, err = b.Invoke(btrcall.Insert, pos.Bytes(), make([]byte, 3), u32(3), []byte("k"), 0)
	require.NoError(t, err)
	assert.Equal(t, 6, alloc.Allocs())
	assert.Equal(t, 6, alloc.Frees())
}

// TestPositionBlockHelpers tests the PositionBlock convenience methods
func TestPositionBlockHelpers(t *testing.T) {
	var pos btrcall.PositionBlock
	require.Len(t, pos.Bytes(), btrcall.PositionBlockLength)

	pos.Bytes()[5] = 9
	assert.Equal(t, byte(9), pos[5], "Bytes must alias the block")

	pos.Reset()
	assert.Equal(t, btrcall.PositionBlock{}, pos)

	assert.Equal(t, []byte("a.dat\x00"), btrcall.PathKey("a.dat"))
}

// TestBackendString tests backend names
func TestBackendString(t *testing.T) {
	assert.Equal(t, "Pure Go (goengine)", btrcall.BackendPureGo.String())
	assert.Equal(t, "CGO (BTRCALL)", btrcall.BackendNative.String())
	assert.Equal(t, "Unknown", btrcall.Backend(42).String())
}

// TestCloseWithoutLibrary verifies Close is a no-op for injected bindings
func TestCloseWithoutLibrary(t *testing.T) {
	b, _ := newTestBridge(t, btrtest.NewRecorder())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
