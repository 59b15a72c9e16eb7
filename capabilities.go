package vidtex

import "time"

// MediaInterface groups the operations for loading and starting media.
type MediaInterface interface {
	// Loads a video and prepares it for playback.
	Load(handle Handle) error

	// Loads a video and starts playing it.
	Play(handle Handle) error

	// Like Load(), but parsing the handle from a URI string first.
	LoadURI(uri string) error

	// Like Play(), but parsing the handle from a URI string first.
	PlayURI(uri string) error

	// Returns whether there's currently playable media loaded.
	HasMedia() bool

	// Returns a handle for the media the backend reports as loaded.
	CurrentMedia() (Handle, bool)
}

// ControlsInterface groups playback controls. All methods are requests to
// the backend: none of them wait for the request to take effect, and all
// of them are no-ops while no media is loaded.
type ControlsInterface interface {
	// Starts or resumes playback.
	Play()

	// Stops playback and rewinds to the start.
	Stop()

	// Pauses or resumes playback.
	SetPause(pause bool)

	// Moves the playback position, relative to the start of the video.
	SetTime(position time.Duration)

	// Returns the playback position.
	Time() time.Duration

	// Returns the media length, or 0 if unknown.
	Length() time.Duration

	// Sets whether the video loops back to the start when reaching the end.
	SetRepeat(repeat bool)

	// Returns whether looping is enabled. See SetRepeat().
	Repeat() bool

	// Returns the backend playback state.
	State() PlaybackState
}

// CodecInterface exposes information about the video track. With no video
// track present, Width(), Height() and FrameRate() return 0 and
// AspectRatio() returns 1, so callers never need to special-case them.
type CodecInterface interface {
	Width() int
	Height() int
	FrameRate() float64
	AspectRatio() float64
}

// EventListener holds callbacks for playback events. Nil callbacks are
// skipped.
type EventListener struct {
	// The backend playback state changed.
	OnStateChange func(state PlaybackState)

	// Playback reached the end of the media and didn't loop.
	OnFinished func()

	// Decoding failed and playback stopped.
	OnError func(err error)
}

// EventsInterface registers listeners for playback events. Listeners run on
// the decoder goroutine: they must return quickly and post anything that
// touches the render engine to the [RenderQueue].
type EventsInterface interface {
	// Adds a listener and returns a function removing it again.
	AddListener(listener EventListener) (remove func())
}
