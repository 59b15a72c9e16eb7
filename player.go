package vidtex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// A [Player] is one playback session bound to an identifier. Players are
// created and owned by a [Manager]; see [Manager.GetOrCreate]().
//
// The player composes three capability interfaces over a single decoder
// session:
//   - [Player.Media]() loads and starts media from handles.
//   - [Player.Controls]() plays, pauses, seeks and loops.
//   - [Player.Codec]() describes the video track.
//   - [Player.Events]() reports state changes, finished media and failures.
//
// Decoded frames land in the player's [Surface], and the texture is made
// available to the host engine under [Player.TextureID]().
//
// Without a native backend, the player stays [Uninitialized]: controls and
// codec queries return neutral values and media operations fail with
// [ErrBackendUnavailable].
type Player struct {
	id      Identifier
	manager *Manager
	surface *Surface
	events  *eventHub

	mutex             sync.Mutex
	state             PlayerState
	session           Session
	registerPosted    bool
	textureRegistered bool
}

func newPlayer(id Identifier, manager *Manager) *Player {
	return &Player{
		id:      id,
		manager: manager,
		surface: NewSurface(manager.textures),
		events:  newEventHub(),
		state:   Uninitialized,
	}
}

// init creates the decoder session. It's a no-op when already initialized
// or when the manager has no native backend. Called with the manager's
// mutex held.
func (p *Player) init() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.state != Uninitialized || !p.manager.natives {
		return
	}

	session, err := p.manager.factory.NewSession()
	if err != nil {
		Logger().WithFields(logrus.Fields{
			"function": "init",
			"player":   p.id.String(),
			"error":    err.Error(),
		}).Warn("Failed to create decoder session, player stays headless")
		return
	}
	session.SetFrameSink(p.surface)
	session.SetEventSink(p.events)
	p.session = session
	p.state = Ready
}

// ID returns the player's identifier.
func (p *Player) ID() Identifier { return p.id }

// State returns the player's lifecycle state.
func (p *Player) State() PlayerState {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.state
}

// Surface returns the frame bridge holding the player's output.
func (p *Player) Surface() *Surface { return p.surface }

// TextureID returns the identifier the player's texture is registered
// under. The first call schedules the registration on the manager's
// [RenderQueue], so the identifier may name a texture that doesn't exist
// until the render goroutine's next tick.
func (p *Player) TextureID() Identifier {
	texID := TextureID(p.id)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.registerPosted && p.state != Closed {
		p.registerPosted = true
		p.manager.queue.Post(func() { p.registerTexture(texID) })
	}
	return texID
}

// TextureRegistered reports whether the render goroutine already
// registered the player's texture.
func (p *Player) TextureRegistered() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.textureRegistered
}

// runs on the render goroutine
func (p *Player) registerTexture(texID Identifier) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.textureRegistered || p.state == Closed || p.manager.textures == nil {
		return
	}
	p.manager.textures.RegisterTexture(texID, p.surface)
	p.textureRegistered = true
}

// Close stops playback, releases the texture and then the decoder
// session, in that order. The player is unusable afterwards. Calling
// Close more than once is a no-op.
//
// Players are owned by their manager, so prefer [Manager.ClosePlayer]().
func (p *Player) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.state == Closed {
		return nil
	}
	p.state = Closed
	p.events.close()

	if p.session != nil {
		p.session.Stop()
	}

	if p.textureRegistered {
		p.manager.textures.UnregisterTexture(TextureID(p.id))
		p.textureRegistered = false
	}
	p.surface.Close()

	var err error
	if p.session != nil {
		err = p.session.Release()
		p.session = nil
	}

	Logger().WithFields(logrus.Fields{
		"function":  "Close",
		"player":    p.id.String(),
		"published": p.surface.Published(),
		"dropped":   p.surface.Dropped(),
	}).Debug("Video player closed")
	return err
}

// Media returns the player's media capability.
func (p *Player) Media() MediaInterface { return playerMedia{p} }

// Controls returns the player's playback controls.
func (p *Player) Controls() ControlsInterface { return playerControls{p} }

// Codec returns the player's video track information.
func (p *Player) Codec() CodecInterface { return playerCodec{p} }

// Events returns the player's event registry. Listeners of a headless
// player are never called; all listeners are dropped on [Player.Close]().
func (p *Player) Events() EventsInterface { return p.events }

func (p *Player) currentSession() Session {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.session
}

func (p *Player) open(handle Handle, start bool) (err error) {
	operation := "Load"
	if start {
		operation = "Play"
	}
	_, span := p.manager.tracer.Start(context.Background(), "vidtex.Player."+operation)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("vidtex.player", p.id.String()))

	p.mutex.Lock()
	state, session := p.state, p.session
	p.mutex.Unlock()
	if state == Closed {
		return ErrPlayerClosed
	}
	if session == nil {
		return ErrBackendUnavailable
	}
	if handle == nil {
		return fmt.Errorf("%w: nil handle", ErrUnsupportedHandle)
	}
	address, ok := handle.Address()
	if !ok || address == "" {
		return fmt.Errorf("%w: %T", ErrUnsupportedHandle, handle)
	}
	span.SetAttributes(attribute.String("vidtex.address", address))

	// opening can take seconds for network addresses, so the player lock is
	// not held here. A concurrent Close() releases the session, which makes
	// the call return early.
	if start {
		err = session.Start(address)
	} else {
		err = session.Prepare(address)
	}
	if err != nil {
		Logger().WithFields(logrus.Fields{
			"function": operation,
			"player":   p.id.String(),
			"address":  address,
			"error":    err.Error(),
		}).Warn("Failed to open media")
		if p.State() == Closed {
			return ErrPlayerClosed
		}
		return err
	}
	return nil
}

// --- media ---

var _ MediaInterface = playerMedia{}

type playerMedia struct{ p *Player }

func (m playerMedia) Load(handle Handle) error { return m.p.open(handle, false) }
func (m playerMedia) Play(handle Handle) error { return m.p.open(handle, true) }

func (m playerMedia) LoadURI(uri string) error {
	handle, err := ParseHandle(uri)
	if err != nil {
		return err
	}
	return m.Load(handle)
}

func (m playerMedia) PlayURI(uri string) error {
	handle, err := ParseHandle(uri)
	if err != nil {
		return err
	}
	return m.Play(handle)
}

func (m playerMedia) HasMedia() bool {
	session := m.p.currentSession()
	return session != nil && session.Playable()
}

// CurrentMedia panics with an error wrapping [ErrBackendInconsistency] if
// the backend reports an address that can't be turned into a handle.
func (m playerMedia) CurrentMedia() (Handle, bool) {
	session := m.p.currentSession()
	if session == nil {
		return nil, false
	}
	address := session.MRL()
	if address == "" {
		return nil, false
	}
	if handle, ok := m.p.manager.handleByAddress(address); ok {
		return handle, true
	}
	handle, err := handleFromAddress(address)
	if err != nil {
		panic(fmt.Errorf("%w: player %s reported %q: %v", ErrBackendInconsistency, m.p.id, address, err))
	}
	return handle, true
}

// --- controls ---

var _ ControlsInterface = playerControls{}

type playerControls struct{ p *Player }

func (c playerControls) Play() {
	if s := c.p.currentSession(); s != nil {
		s.Play()
	}
}

func (c playerControls) Stop() {
	if s := c.p.currentSession(); s != nil {
		s.Stop()
	}
}

func (c playerControls) SetPause(pause bool) {
	if s := c.p.currentSession(); s != nil {
		s.SetPause(pause)
	}
}

func (c playerControls) SetTime(position time.Duration) {
	if s := c.p.currentSession(); s != nil {
		s.SetTime(position)
	}
}

func (c playerControls) Time() time.Duration {
	if s := c.p.currentSession(); s != nil {
		return s.Time()
	}
	return 0
}

func (c playerControls) Length() time.Duration {
	if s := c.p.currentSession(); s != nil {
		return s.Length()
	}
	return 0
}

func (c playerControls) SetRepeat(repeat bool) {
	if s := c.p.currentSession(); s != nil {
		s.SetRepeat(repeat)
	}
}

func (c playerControls) Repeat() bool {
	if s := c.p.currentSession(); s != nil {
		return s.Repeat()
	}
	return false
}

func (c playerControls) State() PlaybackState {
	if s := c.p.currentSession(); s != nil {
		return s.State()
	}
	return Stopped
}

// --- codec ---

var _ CodecInterface = playerCodec{}

type playerCodec struct{ p *Player }

func (c playerCodec) track() (VideoTrack, bool) {
	session := c.p.currentSession()
	if session == nil {
		return VideoTrack{}, false
	}
	return session.VideoTrack()
}

func (c playerCodec) Width() int {
	track, ok := c.track()
	if !ok {
		return 0
	}
	return track.Width
}

func (c playerCodec) Height() int {
	track, ok := c.track()
	if !ok {
		return 0
	}
	return track.Height
}

func (c playerCodec) FrameRate() float64 {
	track, ok := c.track()
	if !ok || track.FrameRateDen == 0 {
		return 0
	}
	return float64(track.FrameRateNum) / float64(track.FrameRateDen)
}

// AspectRatio returns the display aspect ratio: the frame's width over its
// height, corrected by the sample aspect ratio when the stream declares one.
func (c playerCodec) AspectRatio() float64 {
	track, ok := c.track()
	if !ok || track.Width <= 0 || track.Height <= 0 {
		return 1
	}
	ratio := float64(track.Width) / float64(track.Height)
	if track.SampleAspectNum > 0 && track.SampleAspectDen > 0 {
		ratio *= float64(track.SampleAspectNum) / float64(track.SampleAspectDen)
	}
	return ratio
}
