// Package reisenbackend implements vidtex decoder sessions on top of
// FFmpeg through the reisen bindings.
//
// Each session owns one goroutine that applies control commands in order
// and decodes video frames at the stream's native frame rate, pushing them
// to the session's frame sink. Audio streams are ignored.
package reisenbackend

import (
	"errors"
	"sync"

	"github.com/erparts/reisen"
	"github.com/sirupsen/logrus"

	vidtex "github.com/erparts/go-vidtex"
)

var (
	// ErrNoVideo is returned when opening media without any video stream.
	ErrNoVideo = errors.New("media doesn't include any video stream")

	// ErrReleased is returned by sessions used after Release().
	ErrReleased = errors.New("decoder session released")
)

var _ vidtex.SessionFactory = (*Factory)(nil)

// A Factory creates reisen sessions. It initializes FFmpeg networking so
// sessions can open URLs, and deinitializes it on [Factory.Close]().
type Factory struct {
	sessions  sync.WaitGroup
	closeOnce sync.Once
}

// NewFactory initializes FFmpeg networking. Use [Bootstrap] instead when
// handing the factory to a manager.
func NewFactory() (*Factory, error) {
	if err := reisen.NetworkInitialize(); err != nil {
		return nil, err
	}
	vidtex.Logger().WithFields(logrus.Fields{
		"function": "NewFactory",
	}).Debug("FFmpeg network initialized")
	return &Factory{}, nil
}

// Bootstrap adapts [NewFactory]() to [vidtex.Bootstrap].
func Bootstrap() (vidtex.SessionFactory, error) {
	factory, err := NewFactory()
	if err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *Factory) NewSession() (vidtex.Session, error) {
	return newSession(&f.sessions), nil
}

// Close waits until every session created by the factory was released and
// has freed its media, then deinitializes FFmpeg networking.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		f.sessions.Wait()
		reisen.NetworkDeinitialize()
	})
	return nil
}
