package reisenbackend

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vidtex "github.com/erparts/go-vidtex"
)

func TestPositionFollowsWallClock(t *testing.T) {
	start := time.Now()
	s := &session{
		state:             vidtex.Playing,
		duration:          10 * time.Second,
		referenceTime:     start,
		referencePosition: 2 * time.Second,
	}

	assert.Equal(t, 5*time.Second, s.noLockPosition(start.Add(3*time.Second)))
	assert.Equal(t, 2*time.Second, s.noLockPosition(start.Add(-time.Second)), "clock going backwards")
	assert.Equal(t, 10*time.Second, s.noLockPosition(start.Add(20*time.Second)))

	s.looping = true
	assert.Equal(t, 2*time.Second, s.noLockPosition(start.Add(10*time.Second)))

	s.state = vidtex.Paused
	assert.Equal(t, 2*time.Second, s.noLockPosition(start.Add(time.Hour)))
}

func TestPositionOfLiveStreamsIsUnbounded(t *testing.T) {
	start := time.Now()
	s := &session{state: vidtex.Playing, referenceTime: start}
	assert.Equal(t, time.Hour, s.noLockPosition(start.Add(time.Hour)))
}

func TestSetPauseFreezesPosition(t *testing.T) {
	s := &session{
		state:         vidtex.Playing,
		duration:      time.Minute,
		referenceTime: time.Now().Add(-3 * time.Second),
	}
	s.noLockSetPause(true)
	assert.Equal(t, vidtex.Paused, s.state)
	assert.InDelta(t, float64(3*time.Second), float64(s.referencePosition), float64(100*time.Millisecond))

	s.noLockSetPause(true)
	assert.Equal(t, vidtex.Paused, s.state)
	s.noLockSetPause(false)
	assert.Equal(t, vidtex.Playing, s.state)
}

func TestSessionWithoutMedia(t *testing.T) {
	s := newSession(nil)
	defer s.Release()

	s.Play()
	s.SetTime(time.Second)
	s.SetRepeat(true)
	assert.Eventually(t, s.Repeat, time.Second, 5*time.Millisecond)

	assert.False(t, s.Playable())
	assert.Empty(t, s.MRL())
	assert.Equal(t, vidtex.Stopped, s.State())
	assert.Zero(t, s.Time())
	assert.Zero(t, s.Length())
	_, ok := s.VideoTrack()
	assert.False(t, ok)
}

func TestSessionRelease(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())

	assert.ErrorIs(t, s.Prepare("/tmp/a.mp4"), ErrReleased)
	assert.ErrorIs(t, s.Start("/tmp/a.mp4"), ErrReleased)
	s.Stop()
	s.SetPause(true)
}

func TestAdvanceClampsClockSilently(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	vidtex.SetLogger(logger)
	defer vidtex.SetLogger(nil)

	// a tick timestamp taken before a play command reset the reference time
	start := time.Now()
	s := &session{
		state:          vidtex.Playing,
		frameDuration:  defaultFrameDuration,
		referenceTime:  start,
		lastPresOffset: time.Hour, // nothing to decode yet
	}
	s.advance(start.Add(-10 * time.Millisecond))

	assert.Empty(t, hook.AllEntries())
	assert.Equal(t, vidtex.Playing, s.state)
}

func TestReleaseEndsLoop(t *testing.T) {
	var tracker sync.WaitGroup
	s := newSession(&tracker)
	require.NoError(t, s.Release())

	exited := make(chan struct{})
	go func() {
		tracker.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("session loop didn't exit after Release()")
	}
	<-s.done
}
