package vidtex

import "errors"

// Handle and address errors.
var (
	// ErrUnsupportedHandle indicates the handle can't produce an address
	// the decoder understands. Retrying with a different handle may work.
	ErrUnsupportedHandle = errors.New("handle has no decoder address")

	// ErrMalformedAddress indicates a URI string couldn't be parsed or uses
	// a scheme the decoder doesn't support.
	ErrMalformedAddress = errors.New("malformed media address")

	// ErrInvalidIdentifier indicates an identifier with illegal characters.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Backend errors.
var (
	// ErrBackendUnavailable is returned by every media operation while the
	// native backend is missing (headless mode).
	ErrBackendUnavailable = errors.New("native video backend unavailable")

	// ErrBackendInconsistency wraps the panic value raised when the backend
	// reports state that can't be mapped back to a handle.
	ErrBackendInconsistency = errors.New("video backend state inconsistent with handle model")
)

// Player and texture errors.
var (
	// ErrPlayerClosed is returned by media operations on a closed player.
	ErrPlayerClosed = errors.New("video player closed")

	// ErrTextureSize indicates pixel data that doesn't match the texture size.
	ErrTextureSize = errors.New("pixel data doesn't match texture size")
)
