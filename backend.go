package vidtex

import "time"

// A Session is one decoder instance provided by a native backend. The
// player delegates its three capability interfaces to it.
//
// Control methods are asynchronous: the session applies them in the order
// they were issued, but may do so after they return.
type Session interface {
	// Opens the given address without starting playback.
	Prepare(address string) error
	// Opens the given address and starts playback.
	Start(address string) error
	// Reports whether the loaded media can be played.
	Playable() bool
	// Returns the address of the loaded media, or "" if none.
	MRL() string

	Play()
	Stop()
	SetPause(pause bool)
	SetTime(position time.Duration)
	Time() time.Duration
	Length() time.Duration
	SetRepeat(repeat bool)
	Repeat() bool
	State() PlaybackState

	// Returns the first video track of the loaded media.
	VideoTrack() (VideoTrack, bool)

	// Sets where decoded frames are delivered. The sink is called from
	// the session's own goroutine.
	SetFrameSink(sink FrameSink)

	// Sets where playback events are delivered. The sink is called from
	// the session's own goroutine, never while the session holds a lock.
	SetEventSink(sink EventSink)

	// Stops decoding and frees native resources. No frames are delivered
	// to the sink after Release returns.
	Release() error
}

// A SessionFactory creates decoder sessions.
type SessionFactory interface {
	NewSession() (Session, error)
}

// A FrameSink receives decoded RGBA frames. The pixel slice is only valid
// for the duration of the call.
type FrameSink interface {
	WriteFrame(width, height int, pix []byte)
}

// An EventSink receives playback events from a session.
type EventSink interface {
	// The playback state changed.
	StateChanged(state PlaybackState)
	// Playback reached the end of the media without looping. Follows the
	// change to [Stopped].
	Finished()
	// Decoding failed and playback was stopped.
	Failed(err error)
}

// VideoTrack describes a decoded video stream.
type VideoTrack struct {
	Width, Height int

	FrameRateNum, FrameRateDen       int
	SampleAspectNum, SampleAspectDen int
}

// Bootstrap discovers the native backend. Returning an error (or
// panicking) leaves the manager in headless mode.
type Bootstrap func() (SessionFactory, error)
