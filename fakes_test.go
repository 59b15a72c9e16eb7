package vidtex

import (
	"errors"
	"sync"
	"time"
)

// callLog records calls across fakes so tests can assert ordering.
type callLog struct {
	mutex sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mutex.Lock()
	l.calls = append(l.calls, call)
	l.mutex.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeSession struct {
	log *callLog

	mutex    sync.Mutex
	address  string
	track    VideoTrack
	hasTrack bool
	state    PlaybackState
	position time.Duration
	length   time.Duration
	repeat   bool
	sink     FrameSink
	events   EventSink
	openErr  error
	released bool

	// when set, Start() and Prepare() signal entered and wait on gate,
	// or return errSessionReleased once Release() closes quit
	gate      chan struct{}
	entered   chan struct{}
	quit      chan struct{}
	closeQuit sync.Once
}

// gateOpens makes the next Start() or Prepare() block like a slow
// network open, until the returned function is called.
func (s *fakeSession) gateOpens() (release func()) {
	s.gate = make(chan struct{})
	s.entered = make(chan struct{})
	s.quit = make(chan struct{})
	return func() { close(s.gate) }
}

var _ Session = (*fakeSession)(nil)

func (s *fakeSession) open(address string, start bool) error {
	if s.gate != nil {
		close(s.entered)
		select {
		case <-s.gate:
		case <-s.quit:
			return errSessionReleased
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.address = address
	s.state = Stopped
	if start {
		s.state = Playing
	}
	return nil
}

func (s *fakeSession) Prepare(address string) error {
	s.log.add("session.Prepare")
	return s.open(address, false)
}

func (s *fakeSession) Start(address string) error {
	s.log.add("session.Start")
	return s.open(address, true)
}

func (s *fakeSession) Playable() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.address != ""
}

func (s *fakeSession) MRL() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.address
}

func (s *fakeSession) Play() {
	s.mutex.Lock()
	s.state = Playing
	s.mutex.Unlock()
}

func (s *fakeSession) Stop() {
	s.log.add("session.Stop")
	s.mutex.Lock()
	s.state = Stopped
	s.position = 0
	s.mutex.Unlock()
}

func (s *fakeSession) SetPause(pause bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if pause && s.state == Playing {
		s.state = Paused
	} else if !pause && s.state == Paused {
		s.state = Playing
	}
}

func (s *fakeSession) SetTime(position time.Duration) {
	s.mutex.Lock()
	s.position = position
	s.mutex.Unlock()
}

func (s *fakeSession) Time() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.position
}

func (s *fakeSession) Length() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.length
}

func (s *fakeSession) SetRepeat(repeat bool) {
	s.mutex.Lock()
	s.repeat = repeat
	s.mutex.Unlock()
}

func (s *fakeSession) Repeat() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.repeat
}

func (s *fakeSession) State() PlaybackState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *fakeSession) VideoTrack() (VideoTrack, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.track, s.hasTrack
}

func (s *fakeSession) SetFrameSink(sink FrameSink) {
	s.mutex.Lock()
	s.sink = sink
	s.mutex.Unlock()
}

func (s *fakeSession) SetEventSink(sink EventSink) {
	s.mutex.Lock()
	s.events = sink
	s.mutex.Unlock()
}

func (s *fakeSession) eventSink() EventSink {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.events
}

func (s *fakeSession) Release() error {
	s.log.add("session.Release")
	if s.quit != nil {
		s.closeQuit.Do(func() { close(s.quit) })
	}
	s.mutex.Lock()
	s.released = true
	s.sink = nil
	s.events = nil
	s.mutex.Unlock()
	return nil
}

// setMRL simulates a backend reporting its own address.
func (s *fakeSession) setMRL(address string) {
	s.mutex.Lock()
	s.address = address
	s.mutex.Unlock()
}

// deliver pushes a frame through the sink, like a decoder goroutine would.
func (s *fakeSession) deliver(width, height int, fill byte) {
	s.mutex.Lock()
	sink := s.sink
	s.mutex.Unlock()
	if sink != nil {
		sink.WriteFrame(width, height, solidFrame(width, height, fill))
	}
}

type fakeFactory struct {
	log      *callLog
	mutex    sync.Mutex
	sessions []*fakeSession
	err      error
	closed   bool
}

func (f *fakeFactory) NewSession() (Session, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	session := &fakeSession{log: f.log}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeFactory) Close() error {
	f.mutex.Lock()
	f.closed = true
	f.mutex.Unlock()
	return nil
}

func (f *fakeFactory) last() *fakeSession {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *fakeFactory) bootstrap() Bootstrap {
	return func() (SessionFactory, error) { return f, nil }
}

type fakeTexture struct {
	log           *callLog
	width, height int
	uploads       int
	last          []byte
	released      bool
	uploadErr     error
}

func (t *fakeTexture) Upload(pix []byte) error {
	if t.uploadErr != nil {
		return t.uploadErr
	}
	if len(pix) != t.width*t.height*4 {
		return ErrTextureSize
	}
	t.uploads++
	t.last = append(t.last[:0], pix...)
	return nil
}

func (t *fakeTexture) Size() (int, int) { return t.width, t.height }

func (t *fakeTexture) Release() {
	t.log.add("texture.Release")
	t.released = true
}

type fakeTable struct {
	log       *callLog
	mutex     sync.Mutex
	sources   map[Identifier]PixelSource
	textures  []*fakeTexture
	uploadErr error
	newErr    error
}

var _ TextureTable = (*fakeTable)(nil)

func newFakeTable(log *callLog) *fakeTable {
	return &fakeTable{log: log, sources: make(map[Identifier]PixelSource)}
}

func (t *fakeTable) NewTexture(width, height int) (Texture, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.newErr != nil {
		return nil, t.newErr
	}
	texture := &fakeTexture{log: t.log, width: width, height: height, uploadErr: t.uploadErr}
	t.textures = append(t.textures, texture)
	return texture, nil
}

func (t *fakeTable) RegisterTexture(id Identifier, source PixelSource) {
	t.log.add("table.Register")
	t.mutex.Lock()
	t.sources[id] = source
	t.mutex.Unlock()
}

func (t *fakeTable) UnregisterTexture(id Identifier) {
	t.log.add("table.Unregister")
	t.mutex.Lock()
	delete(t.sources, id)
	t.mutex.Unlock()
}

func (t *fakeTable) source(id Identifier) (PixelSource, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	source, ok := t.sources[id]
	return source, ok
}

func solidFrame(width, height int, fill byte) []byte {
	pix := make([]byte, width*height*4)
	for i := range pix {
		pix[i] = fill
	}
	return pix
}

var (
	errUploadFailed    = errors.New("device lost")
	errSessionReleased = errors.New("session released")
)
