package reisenbackend

import (
	"sync"
	"time"

	"github.com/erparts/reisen"
	"github.com/sirupsen/logrus"

	vidtex "github.com/erparts/go-vidtex"
)

const (
	// used while no media is loaded, and for streams without frame rate
	defaultFrameDuration = time.Second / 30

	// pending commands beyond this block the caller until the loop catches up
	commandBacklog = 64
)

var _ vidtex.Session = (*session)(nil)

type commandKind uint8

const (
	cmdOpen commandKind = iota
	cmdPlay
	cmdStop
	cmdPause
	cmdSeek
	cmdRepeat
)

type command struct {
	kind     commandKind
	address  string
	start    bool
	flag     bool
	position time.Duration
	reply    chan error
}

type eventKind uint8

const (
	eventState eventKind = iota
	eventFinished
	eventFailed
)

type event struct {
	kind  eventKind
	state vidtex.PlaybackState
	err   error
}

// session decodes one media at a time. All state below the mutex is shared
// between the loop goroutine and the query methods. The reisen objects are
// only touched by the loop goroutine, and the mutex is never held while
// reisen opens new media.
type session struct {
	mutex  sync.Mutex
	media  *reisen.Media
	stream *reisen.VideoStream

	// static data of the loaded media
	address       string
	track         vidtex.VideoTrack
	duration      time.Duration // 0 for live streams
	frameDuration time.Duration

	// state variables
	state             vidtex.PlaybackState
	looping           bool
	referenceTime     time.Time
	referencePosition time.Duration
	pendingSeek       bool
	lastPresOffset    time.Duration // -1 when no frame was read since the last (re)start
	sink              vidtex.FrameSink
	eventSink         vidtex.EventSink
	pendingEvents     []event

	commands    chan command
	quit        chan struct{}
	done        chan struct{}
	tracker     *sync.WaitGroup
	releaseOnce sync.Once
}

// newSession starts the session loop. The tracker, if not nil, is marked
// done once the loop has exited and freed the media.
func newSession(tracker *sync.WaitGroup) *session {
	s := &session{
		frameDuration:  defaultFrameDuration,
		state:          vidtex.Stopped,
		lastPresOffset: -1,
		commands:       make(chan command, commandBacklog),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		tracker:        tracker,
	}
	if tracker != nil {
		tracker.Add(1)
	}
	go s.loop()
	return s
}

// --- vidtex.Session ---

func (s *session) Prepare(address string) error { return s.open(address, false) }
func (s *session) Start(address string) error   { return s.open(address, true) }

func (s *session) open(address string, start bool) error {
	reply := make(chan error, 1)
	if !s.send(command{kind: cmdOpen, address: address, start: start, reply: reply}) {
		return ErrReleased
	}
	select {
	case err := <-reply:
		return err
	case <-s.quit:
		return ErrReleased
	}
}

func (s *session) Playable() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.media != nil
}

func (s *session) MRL() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.address
}

func (s *session) Play()                          { s.send(command{kind: cmdPlay}) }
func (s *session) Stop()                          { s.send(command{kind: cmdStop}) }
func (s *session) SetPause(pause bool)            { s.send(command{kind: cmdPause, flag: pause}) }
func (s *session) SetTime(position time.Duration) { s.send(command{kind: cmdSeek, position: position}) }
func (s *session) SetRepeat(repeat bool)          { s.send(command{kind: cmdRepeat, flag: repeat}) }

func (s *session) Time() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.noLockPosition(time.Now())
}

func (s *session) Length() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.duration
}

func (s *session) Repeat() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.looping
}

func (s *session) State() vidtex.PlaybackState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *session) VideoTrack() (vidtex.VideoTrack, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.track, s.media != nil
}

func (s *session) SetFrameSink(sink vidtex.FrameSink) {
	s.mutex.Lock()
	s.sink = sink
	s.mutex.Unlock()
}

func (s *session) SetEventSink(sink vidtex.EventSink) {
	s.mutex.Lock()
	s.eventSink = sink
	s.mutex.Unlock()
}

// Release stops the loop goroutine and detaches the sinks. It doesn't wait
// for a media open in progress: the loop frees the media once that open
// returns. Frames are never delivered after Release returns.
func (s *session) Release() error {
	s.releaseOnce.Do(func() {
		close(s.quit)
		s.mutex.Lock()
		s.sink = nil
		s.eventSink = nil
		s.pendingEvents = nil
		s.mutex.Unlock()
	})
	return nil
}

func (s *session) released() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// send queues a command, returning false if the session was released.
func (s *session) send(cmd command) bool {
	if s.released() {
		return false
	}
	select {
	case s.commands <- cmd:
		return true
	case <-s.quit:
		return false
	}
}

// --- loop goroutine ---

func (s *session) loop() {
	defer func() {
		s.mutex.Lock()
		if err := s.noLockCloseMedia(); err != nil {
			vidtex.Logger().WithFields(logrus.Fields{
				"function": "loop",
				"address":  s.address,
				"error":    err.Error(),
			}).Warn("Error while closing media")
		}
		s.mutex.Unlock()
		close(s.done)
		if s.tracker != nil {
			s.tracker.Done()
		}
	}()

	interval := defaultFrameDuration
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case cmd := <-s.commands:
			s.apply(cmd)
		case <-ticker.C:
			s.advance(time.Now())
		}
		s.flushEvents()

		// follow the frame rate of whatever is loaded now
		s.mutex.Lock()
		frameDuration := s.frameDuration
		s.mutex.Unlock()
		if frameDuration != interval {
			interval = frameDuration
			ticker.Reset(interval)
		}
	}
}

func (s *session) apply(cmd command) {
	var err error
	if cmd.kind == cmdOpen {
		err = s.openMedia(cmd.address, cmd.start)
	} else {
		s.mutex.Lock()
		switch cmd.kind {
		case cmdPlay:
			err = s.noLockPlay()
		case cmdStop:
			err = s.noLockStop(stopModeManual)
		case cmdPause:
			s.noLockSetPause(cmd.flag)
		case cmdSeek:
			err = s.noLockSeek(cmd.position)
		case cmdRepeat:
			s.looping = cmd.flag
		}
		s.mutex.Unlock()
	}

	if cmd.reply != nil {
		cmd.reply <- err
	} else if err != nil {
		vidtex.Logger().WithFields(logrus.Fields{
			"function": "apply",
			"address":  s.MRL(),
			"command":  int(cmd.kind),
			"error":    err.Error(),
		}).Warn("Decoder command failed")
	}
}

// openMedia opens the address without holding the mutex, then swaps the
// new media in. Queries keep answering for the previous media meanwhile.
func (s *session) openMedia(address string, start bool) error {
	media, err := reisen.NewMedia(address)
	if err != nil {
		return err
	}
	if s.released() {
		media.Close()
		return ErrReleased
	}
	videoStreams := media.VideoStreams()
	if len(videoStreams) == 0 {
		media.Close()
		return ErrNoVideo
	}
	if len(videoStreams) > 1 {
		vidtex.Logger().WithFields(logrus.Fields{
			"function": "open",
			"address":  address,
			"streams":  len(videoStreams),
		}).Warn("Media has multiple video streams; defaulting to the first")
	}
	stream := videoStreams[0]

	frNum, frDenom := stream.FrameRate()
	frameDuration := defaultFrameDuration
	if frNum > 0 && frDenom > 0 {
		frameDuration = (time.Second * time.Duration(frDenom)) / time.Duration(frNum)
	}
	duration, err := stream.Duration()
	if err != nil || duration < 0 {
		duration = 0 // live or unknown length
	}
	sarNum, sarDen := stream.AspectRatio()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.noLockCloseMedia(); err != nil {
		vidtex.Logger().WithFields(logrus.Fields{
			"function": "open",
			"address":  s.address,
			"error":    err.Error(),
		}).Warn("Error while closing previous media")
	}

	s.media = media
	s.stream = stream
	s.address = address
	s.duration = duration
	s.frameDuration = frameDuration
	s.track = vidtex.VideoTrack{
		Width:           stream.Width(),
		Height:          stream.Height(),
		FrameRateNum:    frNum,
		FrameRateDen:    frDenom,
		SampleAspectNum: sarNum,
		SampleAspectDen: sarDen,
	}
	s.referencePosition = 0
	s.pendingSeek = false
	s.lastPresOffset = -1

	vidtex.Logger().WithFields(logrus.Fields{
		"function": "open",
		"address":  address,
		"width":    s.track.Width,
		"height":   s.track.Height,
		"duration": duration.String(),
	}).Debug("Media opened")

	if start {
		return s.noLockPlay()
	}
	return nil
}

func (s *session) noLockPlay() error {
	if s.media == nil || s.state == vidtex.Playing {
		return nil
	}
	if s.state == vidtex.Stopped {
		s.lastPresOffset = -1
		if err := s.media.OpenDecode(); err != nil {
			return err
		}
		if err := s.stream.Open(); err != nil {
			_ = s.media.CloseDecode()
			return err
		}
		if s.pendingSeek {
			if err := s.stream.Rewind(s.referencePosition); err != nil {
				return s.noLockAbortPlay(err)
			}
		} else {
			s.referencePosition = 0 // necessary if we had a natural end-of-video stop
		}
		s.pendingSeek = false
	}
	s.referenceTime = time.Now()
	s.noLockSetState(vidtex.Playing)
	return nil
}

// noLockAbortPlay undoes the decoder setup of a play that failed after
// opening the stream, so the next play starts from scratch.
func (s *session) noLockAbortPlay(cause error) error {
	s.pendingSeek = false
	s.referencePosition = 0
	if err := s.stream.Close(); err != nil {
		vidtex.Logger().WithFields(logrus.Fields{
			"function": "play",
			"address":  s.address,
			"error":    err.Error(),
		}).Warn("Error while closing stream")
	}
	if err := s.media.CloseDecode(); err != nil {
		vidtex.Logger().WithFields(logrus.Fields{
			"function": "play",
			"address":  s.address,
			"error":    err.Error(),
		}).Warn("Error while closing decoder")
	}
	return cause
}

func (s *session) noLockSetPause(pause bool) {
	now := time.Now()
	switch {
	case pause && s.state == vidtex.Playing:
		s.referencePosition = s.noLockPosition(now)
		s.referenceTime = now
		s.noLockSetState(vidtex.Paused)
	case !pause && s.state == vidtex.Paused:
		s.referenceTime = now
		s.noLockSetState(vidtex.Playing)
	}
}

func (s *session) noLockSeek(position time.Duration) error {
	if s.media == nil {
		return nil
	}
	position = max(position, 0)
	if s.duration > 0 && position >= s.duration {
		return s.noLockStop(stopModeManual)
	}
	if s.state == vidtex.Stopped {
		// applied when playback starts, streams are closed for now
		s.referencePosition = position
		s.pendingSeek = position > 0
		return nil
	}

	if err := s.stream.Rewind(position); err != nil {
		return err
	}
	s.referencePosition = position
	s.referenceTime = time.Now()
	s.lastPresOffset = -1

	// show the frame at the new position right away, even while paused
	frame, err := s.readVideoFrame()
	if err != nil || frame == nil {
		return err
	}
	if presOffset, err := frame.PresentationOffset(); err == nil {
		s.lastPresOffset = presOffset
	}
	s.noLockDeliver(frame)
	return nil
}

// aux type for noLockStop operations
type stopMode bool

const (
	stopModeManual     stopMode = true
	stopModeEndOfVideo stopMode = false
)

// There are only two ways in which a video can be stopped: manually or
// due to reaching the end of the video. Manual stops rewind the position
// to 0, end-of-video stops leave it at the duration.
func (s *session) noLockStop(mode stopMode) error {
	s.pendingSeek = false
	if mode == stopModeManual {
		s.referencePosition = 0
	} else {
		s.referencePosition = s.duration
	}
	if s.state == vidtex.Stopped || s.media == nil {
		return nil
	}

	s.noLockSetState(vidtex.Stopped)
	s.referenceTime = time.Time{}
	s.lastPresOffset = -1
	if err := s.stream.Close(); err != nil {
		return err
	}
	return s.media.CloseDecode()
}

func (s *session) noLockCloseMedia() error {
	if s.media == nil {
		return nil
	}
	err := s.noLockStop(stopModeManual)
	s.media.Close()
	s.media = nil
	s.stream = nil
	s.address = ""
	s.track = vidtex.VideoTrack{}
	s.duration = 0
	s.frameDuration = defaultFrameDuration
	return err
}

func (s *session) noLockPosition(now time.Time) time.Duration {
	if s.state != vidtex.Playing {
		return s.referencePosition
	}
	if s.referenceTime.After(now) {
		now = s.referenceTime
	}
	position := s.referencePosition + now.Sub(s.referenceTime)
	if s.duration > 0 && position > s.duration {
		if s.looping {
			return position % s.duration
		}
		return s.duration
	}
	return position
}

// --- events ---

func (s *session) noLockSetState(state vidtex.PlaybackState) {
	if s.state == state {
		return
	}
	s.state = state
	s.noLockEmit(event{kind: eventState, state: state})
}

func (s *session) noLockEmit(e event) {
	if s.eventSink != nil {
		s.pendingEvents = append(s.pendingEvents, e)
	}
}

// flushEvents delivers the events queued by the last command or tick,
// outside the mutex so sinks can query the session.
func (s *session) flushEvents() {
	s.mutex.Lock()
	events, sink := s.pendingEvents, s.eventSink
	s.pendingEvents = nil
	s.mutex.Unlock()
	if sink == nil {
		return
	}
	for _, e := range events {
		switch e.kind {
		case eventState:
			sink.StateChanged(e.state)
		case eventFinished:
			sink.Finished()
		case eventFailed:
			sink.Failed(e.err)
		}
	}
}
