package vidtex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceLatestKeepsOnlyNewestFrame(t *testing.T) {
	surface := NewSurface(nil)
	_, ok := surface.Latest()
	assert.False(t, ok)

	surface.WriteFrame(2, 2, solidFrame(2, 2, 1))
	surface.WriteFrame(2, 2, solidFrame(2, 2, 2))

	frame, ok := surface.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), frame.Seq)
	assert.Equal(t, solidFrame(2, 2, 2), frame.Pix)
	assert.Equal(t, uint64(2), surface.Published())
	assert.Equal(t, uint64(1), surface.Dropped())

	again, ok := surface.Latest()
	require.True(t, ok)
	assert.Equal(t, frame.Seq, again.Seq)
	assert.Equal(t, frame.Pix, again.Pix)
}

func TestSurfaceCopiesFrameData(t *testing.T) {
	surface := NewSurface(nil)
	pix := solidFrame(1, 1, 7)
	surface.WriteFrame(1, 1, pix)
	pix[0] = 99

	frame, ok := surface.Latest()
	require.True(t, ok)
	assert.Equal(t, byte(7), frame.Pix[0])
}

func TestSurfaceDiscardsMalformedFrames(t *testing.T) {
	surface := NewSurface(nil)
	surface.WriteFrame(2, 2, make([]byte, 3))
	surface.WriteFrame(0, 2, nil)
	surface.WriteFrame(-1, 1, make([]byte, 16))

	assert.Zero(t, surface.Published())
	_, ok := surface.Latest()
	assert.False(t, ok)
}

func TestSurfaceUpdateUploadsEachFrameOnce(t *testing.T) {
	table := newFakeTable(nil)
	surface := NewSurface(table)

	uploaded, err := surface.Update()
	require.NoError(t, err)
	assert.False(t, uploaded, "nothing to upload yet")
	assert.Nil(t, surface.Texture())

	surface.WriteFrame(2, 2, solidFrame(2, 2, 5))
	uploaded, err = surface.Update()
	require.NoError(t, err)
	assert.True(t, uploaded)

	uploaded, err = surface.Update()
	require.NoError(t, err)
	assert.False(t, uploaded)

	require.Len(t, table.textures, 1)
	texture := table.textures[0]
	assert.Equal(t, 1, texture.uploads)
	assert.Equal(t, solidFrame(2, 2, 5), texture.last)
	assert.Same(t, texture, surface.Texture())
}

func TestSurfaceReallocatesTextureOnResize(t *testing.T) {
	table := newFakeTable(nil)
	surface := NewSurface(table)

	surface.WriteFrame(2, 2, solidFrame(2, 2, 1))
	_, err := surface.Update()
	require.NoError(t, err)

	surface.WriteFrame(4, 2, solidFrame(4, 2, 1))
	_, err = surface.Update()
	require.NoError(t, err)

	require.Len(t, table.textures, 2)
	assert.True(t, table.textures[0].released)
	assert.False(t, table.textures[1].released)
	w, h := surface.Texture().Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
}

func TestSurfaceUpdateReportsUploadErrors(t *testing.T) {
	table := newFakeTable(nil)
	table.uploadErr = errUploadFailed
	surface := NewSurface(table)

	surface.WriteFrame(1, 1, solidFrame(1, 1, 1))
	uploaded, err := surface.Update()
	assert.False(t, uploaded)
	assert.ErrorIs(t, err, errUploadFailed)
}

func TestSurfaceUpdateReportsAllocationErrors(t *testing.T) {
	table := newFakeTable(nil)
	table.newErr = errUploadFailed
	surface := NewSurface(table)

	surface.WriteFrame(1, 1, solidFrame(1, 1, 1))
	_, err := surface.Update()
	assert.ErrorIs(t, err, errUploadFailed)
}

func TestSurfaceClose(t *testing.T) {
	table := newFakeTable(nil)
	surface := NewSurface(table)
	surface.WriteFrame(1, 1, solidFrame(1, 1, 1))
	_, err := surface.Update()
	require.NoError(t, err)

	surface.Close()
	surface.Close()
	assert.True(t, table.textures[0].released)
	assert.Nil(t, surface.Texture())

	surface.WriteFrame(1, 1, solidFrame(1, 1, 2))
	assert.Equal(t, uint64(1), surface.Published())
	uploaded, err := surface.Update()
	assert.NoError(t, err)
	assert.False(t, uploaded)
}

func TestSurfaceConcurrentProducerNeverTears(t *testing.T) {
	const (
		width, height = 16, 16
		frames        = 2000
	)
	surface := NewSurface(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= frames; i++ {
			surface.WriteFrame(width, height, solidFrame(width, height, byte(i)))
		}
	}()

	var lastSeq uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	check := func() {
		frame, ok := surface.Latest()
		if !ok {
			return
		}
		require.GreaterOrEqual(t, frame.Seq, lastSeq)
		lastSeq = frame.Seq
		want := byte(frame.Seq)
		for i, b := range frame.Pix {
			if b != want {
				t.Fatalf("torn frame %d: byte %d is %d, want %d", frame.Seq, i, b, want)
			}
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		check()
	}
	check()

	assert.Equal(t, uint64(frames), lastSeq)
	assert.Equal(t, uint64(frames), surface.Published())
}
