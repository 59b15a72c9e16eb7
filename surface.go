package vidtex

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// The surface state word packs the index of the published slot (low two
// bits) and whether the reader has yet to take it (freshBit).
const (
	slotMask uint32 = 0b011
	freshBit uint32 = 0b100
)

// A Frame is a decoded RGBA video frame held by a [Surface].
type Frame struct {
	Width, Height int
	Pix           []byte
	Seq           uint64 // publish sequence number, starting at 1
}

type frameSlot struct {
	width, height int
	pix           []byte
	seq           uint64
}

var (
	_ FrameSink   = (*Surface)(nil)
	_ PixelSource = (*Surface)(nil)
)

// A Surface moves decoded frames from a decoder goroutine to a GPU texture
// owned by the render goroutine.
//
// Frames are staged in a triple buffer: the decoder fills its private write
// slot and publishes it with a single atomic swap, and the render goroutine
// takes the latest published slot with another swap. Neither side blocks
// the other, and frames the render goroutine didn't take in time are
// dropped rather than queued.
//
// [Surface.WriteFrame]() must only be called from one goroutine at a time.
// Every other method belongs to the render goroutine.
type Surface struct {
	slots [3]frameSlot
	state atomic.Uint32

	// decoder side
	writeSlot uint32
	writeSeq  uint64

	// render side. renderMutex only orders Update() against a Close()
	// issued from another goroutine; the decoder never takes it.
	renderMutex sync.Mutex
	readSlot    uint32
	table       TextureTable
	texture     Texture
	uploadedSeq uint64

	closed    atomic.Bool
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewSurface creates a surface that allocates its texture through the given
// table. A nil table is allowed: frames are then staged but never uploaded.
func NewSurface(table TextureTable) *Surface {
	s := &Surface{table: table, writeSlot: 0, readSlot: 1}
	s.state.Store(2)
	return s
}

// WriteFrame copies an RGBA frame into the write slot and publishes it.
// Frames written after [Surface.Close]() are ignored.
func (s *Surface) WriteFrame(width, height int, pix []byte) {
	if s.closed.Load() {
		return
	}
	size := width * height * 4
	if width <= 0 || height <= 0 || len(pix) < size {
		Logger().WithFields(logrus.Fields{
			"function": "WriteFrame",
			"width":    width,
			"height":   height,
			"bytes":    len(pix),
		}).Warn("Discarding malformed video frame")
		return
	}

	slot := &s.slots[s.writeSlot]
	if cap(slot.pix) < size {
		slot.pix = make([]byte, size)
	} else {
		slot.pix = slot.pix[:size]
	}
	copy(slot.pix, pix)
	slot.width, slot.height = width, height
	s.writeSeq++
	slot.seq = s.writeSeq

	prev := s.state.Swap(s.writeSlot | freshBit)
	s.writeSlot = prev & slotMask
	s.published.Add(1)
	if prev&freshBit != 0 {
		s.dropped.Add(1)
	}
}

// Latest returns the most recently published frame, or false if no frame
// was published yet. Calling it again without a new publish returns the
// same frame. The pixel data is reused by later calls to Latest() and
// [Surface.Update](), so it must not be retained.
func (s *Surface) Latest() (Frame, bool) {
	s.renderMutex.Lock()
	defer s.renderMutex.Unlock()
	return s.noLockLatest()
}

func (s *Surface) noLockLatest() (Frame, bool) {
	if s.state.Load()&freshBit != 0 {
		prev := s.state.Swap(s.readSlot)
		s.readSlot = prev & slotMask
	}
	slot := &s.slots[s.readSlot]
	if slot.seq == 0 {
		return Frame{}, false
	}
	return Frame{Width: slot.width, Height: slot.height, Pix: slot.pix, Seq: slot.seq}, true
}

// Update uploads the latest frame to the texture if it wasn't uploaded yet,
// and reports whether an upload happened. The texture is (re)allocated
// when the frame size changes. Must be called once per render tick.
func (s *Surface) Update() (bool, error) {
	s.renderMutex.Lock()
	defer s.renderMutex.Unlock()
	if s.closed.Load() {
		return false, nil
	}

	frame, ok := s.noLockLatest()
	if !ok || frame.Seq == s.uploadedSeq || s.table == nil {
		return false, nil
	}
	if err := s.noLockEnsureTexture(frame.Width, frame.Height); err != nil {
		return false, err
	}
	if err := s.texture.Upload(frame.Pix); err != nil {
		return false, fmt.Errorf("upload frame %d: %w", frame.Seq, err)
	}
	s.uploadedSeq = frame.Seq
	return true, nil
}

func (s *Surface) noLockEnsureTexture(width, height int) error {
	if s.texture != nil {
		w, h := s.texture.Size()
		if w == width && h == height {
			return nil
		}
		s.texture.Release()
		s.texture = nil
	}
	texture, err := s.table.NewTexture(width, height)
	if err != nil {
		return fmt.Errorf("allocate %dx%d texture: %w", width, height, err)
	}
	s.texture = texture
	return nil
}

// Texture returns the current texture, or nil before the first upload.
func (s *Surface) Texture() Texture {
	s.renderMutex.Lock()
	defer s.renderMutex.Unlock()
	return s.texture
}

// Published returns how many frames were published.
func (s *Surface) Published() uint64 { return s.published.Load() }

// Dropped returns how many published frames were replaced before the
// render goroutine took them.
func (s *Surface) Dropped() uint64 { return s.dropped.Load() }

// Close releases the texture. Later frames are ignored and Update() becomes
// a no-op. Close is idempotent.
func (s *Surface) Close() {
	s.closed.Store(true)
	s.renderMutex.Lock()
	defer s.renderMutex.Unlock()
	if s.texture != nil {
		s.texture.Release()
		s.texture = nil
	}
}
