package vidtex

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// A Handle identifies a piece of media. Handles are immutable.
//
// Address returns the string the decoder consumes (a local path or a URL),
// or false if the handle variant doesn't support address-based playback.
type Handle interface {
	ID() Identifier
	Address() (string, bool)
}

var (
	_ Handle = (*FileHandle)(nil)
	_ Handle = (*URLHandle)(nil)
	_ Handle = (*ReaderHandle)(nil)
)

// A FileHandle points to a local video file, typically found by a reload scan.
type FileHandle struct {
	id   Identifier
	path string
}

// NewFileHandle creates a handle for a local file. Relative paths are
// resolved against the working directory. The file itself is not checked.
func NewFileHandle(id Identifier, path string) *FileHandle {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &FileHandle{id: id, path: path}
}

func (h *FileHandle) ID() Identifier { return h.id }

// Path returns the resolved local path.
func (h *FileHandle) Path() string { return h.path }

func (h *FileHandle) Address() (string, bool) {
	return h.path, h.path != ""
}

func (h *FileHandle) String() string {
	return fmt.Sprintf("file(%s -> %s)", h.id, h.path)
}

// A URLHandle points to media reachable through a URL. The address is
// always the URL's string form.
type URLHandle struct {
	id  Identifier
	url *url.URL
}

// NewURLHandle creates a handle for the given URL. The URL is copied.
func NewURLHandle(id Identifier, u *url.URL) *URLHandle {
	clone := *u
	return &URLHandle{id: id, url: &clone}
}

func (h *URLHandle) ID() Identifier { return h.id }

// URL returns a copy of the handle's URL.
func (h *URLHandle) URL() *url.URL {
	clone := *h.url
	return &clone
}

func (h *URLHandle) Address() (string, bool) {
	return h.url.String(), true
}

func (h *URLHandle) String() string {
	return "url(" + h.url.String() + ")"
}

// A ReaderHandle wraps in-memory media. The decoder only accepts addresses,
// so players reject these handles with [ErrUnsupportedHandle].
type ReaderHandle struct {
	id     Identifier
	reader io.ReadSeeker
}

func NewReaderHandle(id Identifier, r io.ReadSeeker) *ReaderHandle {
	return &ReaderHandle{id: id, reader: r}
}

func (h *ReaderHandle) ID() Identifier        { return h.id }
func (h *ReaderHandle) Reader() io.ReadSeeker { return h.reader }
func (h *ReaderHandle) Address() (string, bool) {
	return "", false
}

// schemes understood by the decoder backend
var supportedSchemes = map[string]bool{
	"file": true, "http": true, "https": true,
	"rtsp": true, "rtsps": true, "rtmp": true, "rtp": true,
	"udp": true, "tcp": true, "srt": true, "mms": true, "ftp": true,
}

// ParseHandle creates a [URLHandle] from a URI string. Only the syntax is
// validated: nothing is fetched. Malformed URIs and unsupported schemes
// fail with [ErrMalformedAddress].
func ParseHandle(uri string) (Handle, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !supportedSchemes[scheme] {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", ErrMalformedAddress, u.Scheme, uri)
	}
	if scheme == "file" {
		if u.Path == "" && u.Opaque == "" {
			return nil, fmt.Errorf("%w: empty file path in %q", ErrMalformedAddress, uri)
		}
	} else if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrMalformedAddress, uri)
	}
	return NewURLHandle(Identifier{}, u), nil
}

// handleFromAddress maps an address reported by a backend back into a
// handle: absolute local paths become file handles, everything else must
// parse as a supported URL.
func handleFromAddress(address string) (Handle, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrMalformedAddress)
	}
	if filepath.IsAbs(address) {
		return NewFileHandle(Identifier{}, address), nil
	}
	return ParseHandle(address)
}
