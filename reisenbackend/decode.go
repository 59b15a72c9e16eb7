package reisenbackend

import (
	"errors"
	"time"

	"github.com/erparts/reisen"
	"github.com/sirupsen/logrus"

	vidtex "github.com/erparts/go-vidtex"
)

var errBrokenPacketRead = errors.New("reisen returned a packet without finding one")

// advance decodes frames until the stream catches up with the playback
// clock, then delivers the most recent one. Called on every loop tick.
func (s *session) advance(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state != vidtex.Playing {
		return
	}

	if s.referenceTime.After(now) {
		now = s.referenceTime // a command applied during this tick reset the clock
	}
	position := s.referencePosition + now.Sub(s.referenceTime)

	if s.duration > 0 && position >= s.duration {
		if !s.looping {
			s.noLockEndOfVideo()
			return
		}
		if err := s.noLockRewind(now, position-s.duration); err != nil {
			s.noLockFail(err)
			return
		}
		position = s.referencePosition
	}

	// read frames until we reach the target position
	var latest *reisen.VideoFrame
	for s.lastPresOffset < 0 || s.lastPresOffset+s.frameDuration < position {
		frame, err := s.readVideoFrame()
		if err != nil {
			s.noLockFail(err)
			return
		}
		if frame == nil {
			if latest != nil {
				s.noLockDeliver(latest)
			}
			if s.looping {
				if err := s.noLockRewind(now, 0); err != nil {
					s.noLockFail(err)
				}
				return
			}
			s.noLockEndOfVideo()
			return
		}

		presOffset, err := frame.PresentationOffset()
		if err != nil {
			continue // frames without timestamps can't be scheduled
		}
		s.lastPresOffset = presOffset
		latest = frame
	}

	if latest != nil {
		s.noLockDeliver(latest)
	}
}

func (s *session) noLockRewind(now time.Time, position time.Duration) error {
	if err := s.stream.Rewind(0); err != nil {
		return err
	}
	s.referenceTime = now
	s.referencePosition = position
	s.lastPresOffset = -1
	return nil
}

func (s *session) noLockEndOfVideo() {
	if err := s.noLockStop(stopModeEndOfVideo); err != nil {
		s.noLockFail(err)
		return
	}
	s.noLockEmit(event{kind: eventFinished})
}

func (s *session) noLockFail(err error) {
	vidtex.Logger().WithFields(logrus.Fields{
		"function": "advance",
		"address":  s.address,
		"error":    err.Error(),
	}).Error("Decoding failed, stopping playback")
	if s.state != vidtex.Stopped {
		_ = s.noLockStop(stopModeManual)
	}
	s.noLockEmit(event{kind: eventFailed, err: err})
}

func (s *session) noLockDeliver(frame *reisen.VideoFrame) {
	if s.sink == nil {
		return
	}
	s.sink.WriteFrame(s.track.Width, s.track.Height, frame.Data())
}

// readVideoFrame reads packets until it comes across the next frame of the
// video stream. It returns a nil frame at the end of the media.
func (s *session) readVideoFrame() (*reisen.VideoFrame, error) {
	for {
		packet, packetFound, err := s.media.ReadPacket()
		if err != nil {
			return nil, err
		}
		if !packetFound {
			if packet != nil {
				return nil, errBrokenPacketRead
			}
			return nil, nil
		}

		if packet.Type() == reisen.StreamVideo && packet.StreamIndex() == s.stream.Index() {
			frame, frameFound, err := s.stream.ReadVideoFrame()
			if err != nil {
				return nil, err
			}
			_ = frameFound // frameFound can be true while frame is nil: that's a frame skip
			if frame != nil {
				return frame, nil
			}
		}
	}
}
