package reisenbackend

import (
	"errors"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vidtex "github.com/erparts/go-vidtex"
	"github.com/erparts/go-vidtex/natives"
)

const (
	clipWidth    = 32
	clipHeight   = 24
	clipDuration = time.Second
	waitTimeout  = 5 * time.Second
	waitTick     = 10 * time.Millisecond
)

// requireClip generates a one second, 10 fps clip, or skips the test when
// FFmpeg isn't available.
func requireClip(t *testing.T) string {
	t.Helper()
	if result := natives.Probe(); !result.Available {
		t.Skipf("FFmpeg libraries unavailable: %v", result.Err)
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg command not found")
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	out, err := exec.Command(ffmpeg, "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=32x24:rate=10",
		"-t", "1", "-c:v", "mpeg4", path).CombinedOutput()
	if err != nil {
		t.Skipf("unable to generate test clip: %v: %s", err, out)
	}
	return path
}

type recordingSink struct {
	mutex  sync.Mutex
	frames int
	bad    int
}

func (r *recordingSink) WriteFrame(width, height int, pix []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if width != clipWidth || height != clipHeight || len(pix) < width*height*4 {
		r.bad++
		return
	}
	r.frames++
}

func (r *recordingSink) count() (frames, bad int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.frames, r.bad
}

type recordingEvents struct {
	mutex    sync.Mutex
	states   []vidtex.PlaybackState
	finished int
	failures []error
}

func (r *recordingEvents) StateChanged(state vidtex.PlaybackState) {
	r.mutex.Lock()
	r.states = append(r.states, state)
	r.mutex.Unlock()
}

func (r *recordingEvents) Finished() {
	r.mutex.Lock()
	r.finished++
	r.mutex.Unlock()
}

func (r *recordingEvents) Failed(err error) {
	r.mutex.Lock()
	r.failures = append(r.failures, err)
	r.mutex.Unlock()
}

func (r *recordingEvents) snapshot() ([]vidtex.PlaybackState, int, []error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]vidtex.PlaybackState(nil), r.states...), r.finished, append([]error(nil), r.failures...)
}

func newRecordedSession(t *testing.T) (*session, *recordingSink, *recordingEvents) {
	t.Helper()
	s := newSession(nil)
	t.Cleanup(func() {
		s.Release()
		<-s.done
	})
	sink, events := &recordingSink{}, &recordingEvents{}
	s.SetFrameSink(sink)
	s.SetEventSink(events)
	return s, sink, events
}

func TestClipPlaysToEndAndFinishes(t *testing.T) {
	clip := requireClip(t)
	s, sink, events := newRecordedSession(t)

	require.NoError(t, s.Start(clip))
	assert.True(t, s.Playable())
	assert.Equal(t, clip, s.MRL())
	track, ok := s.VideoTrack()
	require.True(t, ok)
	assert.Equal(t, clipWidth, track.Width)
	assert.Equal(t, clipHeight, track.Height)
	assert.InDelta(t, float64(clipDuration), float64(s.Length()), float64(200*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, finished, _ := events.snapshot()
		return finished == 1
	}, waitTimeout, waitTick)

	frames, bad := sink.count()
	assert.Greater(t, frames, 0)
	assert.Zero(t, bad)
	assert.Equal(t, vidtex.Stopped, s.State())
	assert.Equal(t, s.Length(), s.Time(), "end-of-video stops keep the position at the end")

	states, _, failures := events.snapshot()
	assert.Equal(t, []vidtex.PlaybackState{vidtex.Playing, vidtex.Stopped}, states)
	assert.Empty(t, failures)
}

func TestClipLoopsWhenRepeating(t *testing.T) {
	clip := requireClip(t)
	s, sink, events := newRecordedSession(t)

	s.SetRepeat(true)
	require.NoError(t, s.Start(clip))
	time.Sleep(2*clipDuration + clipDuration/2)

	assert.Equal(t, vidtex.Playing, s.State())
	assert.Less(t, s.Time(), s.Length())
	frames, _ := sink.count()
	assert.Greater(t, frames, 10, "a looping clip keeps delivering frames past its own length")
	_, finished, failures := events.snapshot()
	assert.Zero(t, finished)
	assert.Empty(t, failures)
}

func TestClipSeekWhileStoppedAppliesOnPlay(t *testing.T) {
	clip := requireClip(t)
	s, sink, _ := newRecordedSession(t)

	require.NoError(t, s.Prepare(clip))
	s.SetTime(600 * time.Millisecond)
	assert.Eventually(t, func() bool { return s.Time() == 600*time.Millisecond }, waitTimeout, waitTick)
	assert.Equal(t, vidtex.Stopped, s.State())
	frames, _ := sink.count()
	assert.Zero(t, frames, "seeking while stopped doesn't decode")

	s.Play()
	assert.Eventually(t, func() bool {
		frames, _ := sink.count()
		return frames > 0
	}, waitTimeout, waitTick)
	assert.GreaterOrEqual(t, s.Time(), 600*time.Millisecond)
}

func TestClipCommandsApplyInOrder(t *testing.T) {
	clip := requireClip(t)
	s, _, events := newRecordedSession(t)

	require.NoError(t, s.Prepare(clip))
	s.Play()
	s.SetPause(true)
	assert.Eventually(t, func() bool { return s.State() == vidtex.Paused }, waitTimeout, waitTick)

	s.SetPause(false)
	s.Stop()
	assert.Eventually(t, func() bool { return s.State() == vidtex.Stopped }, waitTimeout, waitTick)
	assert.Zero(t, s.Time())

	assert.Eventually(t, func() bool {
		states, _, _ := events.snapshot()
		return len(states) == 4
	}, waitTimeout, waitTick)
	states, finished, _ := events.snapshot()
	assert.Equal(t, []vidtex.PlaybackState{vidtex.Playing, vidtex.Paused, vidtex.Playing, vidtex.Stopped}, states)
	assert.Zero(t, finished)
}

func TestClipAbortedPlayCanBeRetried(t *testing.T) {
	clip := requireClip(t)
	s, sink, _ := newRecordedSession(t)
	require.NoError(t, s.Prepare(clip))

	// the loop only touches the decoder while playing
	cause := errors.New("seek failed")
	s.mutex.Lock()
	require.NoError(t, s.media.OpenDecode())
	require.NoError(t, s.stream.Open())
	s.pendingSeek = true
	s.referencePosition = 300 * time.Millisecond
	err := s.noLockAbortPlay(cause)
	pendingSeek, position, state := s.pendingSeek, s.referencePosition, s.state
	s.mutex.Unlock()

	assert.ErrorIs(t, err, cause)
	assert.False(t, pendingSeek)
	assert.Zero(t, position)
	assert.Equal(t, vidtex.Stopped, state)

	s.Play()
	assert.Eventually(t, func() bool {
		frames, _ := sink.count()
		return frames > 0
	}, waitTimeout, waitTick)
}

func TestClipReleaseFreesMedia(t *testing.T) {
	clip := requireClip(t)
	s := newSession(nil)
	require.NoError(t, s.Start(clip))

	require.NoError(t, s.Release())
	<-s.done
	assert.False(t, s.Playable())
	assert.ErrorIs(t, s.Start(clip), ErrReleased)
}
