package vidtex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/erparts/go-vidtex"

// DefaultExtensions lists the file extensions a [Manager] accepts during
// reloads when [Options].Extensions is empty.
var DefaultExtensions = []string{"mp4", "webm", "avi", "mov", "mpeg", "mkv"}

// Options configure a [Manager].
type Options struct {
	// Discovers the native backend. A nil bootstrap, an error or a panic
	// all leave the manager headless.
	Bootstrap Bootstrap

	// Host texture registry. Can be nil, in which case frames are decoded
	// and staged but never uploaded.
	Textures TextureTable

	// Queue drained by [Manager.Tick](). A new one is created if nil.
	Queue *RenderQueue

	// Supported file extensions, without the leading dot.
	Extensions []string

	// Tracer for reloads and media loads. Defaults to the global otel
	// provider, which is a no-op unless the host installs one.
	Tracer trace.Tracer

	// Called from [Manager.Tick]() when a player is closed because its
	// texture upload failed.
	OnPlayerError func(id Identifier, err error)
}

// A Manager maps identifiers to video handles and to players. There's
// typically one manager per application session.
//
// The handle registry is replaced wholesale on every reload. Players are
// created lazily and only go away through [Manager.ClosePlayer]() or
// [Manager.Close]().
type Manager struct {
	mutex   sync.Mutex
	handles map[Identifier]Handle
	players map[Identifier]*Player

	factory       SessionFactory
	natives       bool
	textures      TextureTable
	queue         *RenderQueue
	extensions    []string
	tracer        trace.Tracer
	onPlayerError func(Identifier, error)
}

// NewManager creates a manager and runs the native backend bootstrap once.
// A failing bootstrap is logged and the manager continues in headless mode.
func NewManager(opts Options) *Manager {
	m := &Manager{
		handles:       make(map[Identifier]Handle),
		players:       make(map[Identifier]*Player),
		textures:      opts.Textures,
		queue:         opts.Queue,
		tracer:        opts.Tracer,
		onPlayerError: opts.OnPlayerError,
	}
	if m.queue == nil {
		m.queue = NewRenderQueue()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	m.extensions = normalizeExtensions(opts.Extensions)

	factory, err := runBootstrap(opts.Bootstrap)
	if err != nil {
		Logger().WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    err.Error(),
		}).Warn("Unable to load video natives, continuing without video playback")
	} else {
		m.factory = factory
		m.natives = true
		Logger().WithFields(logrus.Fields{
			"function": "NewManager",
		}).Info("Video natives loaded")
	}
	return m
}

func runBootstrap(bootstrap Bootstrap) (factory SessionFactory, err error) {
	if bootstrap == nil {
		return nil, fmt.Errorf("%w: no bootstrap configured", ErrBackendUnavailable)
	}
	defer func() {
		if r := recover(); r != nil {
			factory = nil
			err = fmt.Errorf("%w: bootstrap panicked: %v", ErrBackendUnavailable, r)
		}
	}()
	factory, err = bootstrap()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: bootstrap returned no factory", ErrBackendUnavailable)
	}
	return factory, nil
}

func normalizeExtensions(extensions []string) []string {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	seen := make(map[string]bool, len(extensions))
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		normalized = append(normalized, ext)
	}
	return normalized
}

// HasNatives reports whether the native backend bootstrap succeeded and
// the manager wasn't closed since.
func (m *Manager) HasNatives() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.natives
}

// RenderQueue returns the queue drained by [Manager.Tick]().
func (m *Manager) RenderQueue() *RenderQueue { return m.queue }

// SupportedExtensions returns the accepted file extensions, lower case and
// without the leading dot.
func (m *Manager) SupportedExtensions() []string {
	return append([]string(nil), m.extensions...)
}

// IsSupported reports whether the file name has a supported extension.
// The comparison is case-insensitive.
func (m *Manager) IsSupported(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, supported := range m.extensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// --- handles ---

// Reload replaces the whole handle registry with the given mapping. The
// map is copied, and entries missing from it are gone afterwards.
func (m *Manager) Reload(handles map[Identifier]Handle) {
	registry := make(map[Identifier]Handle, len(handles))
	for id, handle := range handles {
		if handle != nil {
			registry[id] = handle
		}
	}
	m.mutex.Lock()
	m.handles = registry
	m.mutex.Unlock()

	Logger().WithFields(logrus.Fields{
		"function": "Reload",
		"videos":   len(registry),
	}).Info("Video registry reloaded")
}

// A ReloadSource produces a complete handle mapping, typically by scanning
// resource directories. Only file names accepted by the given predicate
// may be included.
type ReloadSource interface {
	Scan(ctx context.Context, accept func(name string) bool) (map[Identifier]Handle, error)
}

// ReloadFrom runs the source's scan with [Manager.IsSupported]() and
// replaces the registry with its result. On error, the registry is left
// untouched.
func (m *Manager) ReloadFrom(ctx context.Context, source ReloadSource) error {
	ctx, span := m.tracer.Start(ctx, "vidtex.Manager.ReloadFrom")
	defer span.End()

	handles, err := source.Scan(ctx, m.IsSupported)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return fmt.Errorf("reload videos: %w", err)
	}
	span.SetAttributes(attribute.Int("vidtex.videos", len(handles)))
	m.Reload(handles)
	return nil
}

// Handle looks up a registered handle. It never creates handles.
func (m *Manager) Handle(id Identifier) (Handle, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	handle, ok := m.handles[id]
	return handle, ok
}

// HandleFromURI creates a handle from a URI string. See [ParseHandle]().
func (m *Manager) HandleFromURI(uri string) (Handle, error) {
	return ParseHandle(uri)
}

// Handles returns a snapshot of the handle registry.
func (m *Manager) Handles() map[Identifier]Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	snapshot := make(map[Identifier]Handle, len(m.handles))
	for id, handle := range m.handles {
		snapshot[id] = handle
	}
	return snapshot
}

func (m *Manager) handleByAddress(address string) (Handle, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, handle := range m.handles {
		if a, ok := handle.Address(); ok && a == address {
			return handle, true
		}
	}
	return nil, false
}

// --- players ---

// Player returns the player for the given identifier, if it exists.
func (m *Manager) Player(id Identifier) (*Player, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	player, ok := m.players[id]
	return player, ok
}

// GetOrCreate returns the player for the given identifier, creating and
// initializing it first if needed.
func (m *Manager) GetOrCreate(id Identifier) *Player {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if player, ok := m.players[id]; ok {
		return player
	}
	player := newPlayer(id, m)
	m.players[id] = player
	player.init()
	return player
}

// Players returns a snapshot of the open players.
func (m *Manager) Players() map[Identifier]*Player {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	snapshot := make(map[Identifier]*Player, len(m.players))
	for id, player := range m.players {
		snapshot[id] = player
	}
	return snapshot
}

// ClosePlayer closes the player for the given identifier and removes it.
// It returns whether such a player existed. A later [Manager.GetOrCreate]()
// creates a new player.
func (m *Manager) ClosePlayer(id Identifier) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	player, ok := m.players[id]
	if !ok {
		return false
	}
	delete(m.players, id)
	if err := player.Close(); err != nil {
		Logger().WithFields(logrus.Fields{
			"function": "ClosePlayer",
			"player":   id.String(),
			"error":    err.Error(),
		}).Warn("Error while closing video player")
	}
	return true
}

// Tick runs one render tick: deferred render tasks first, then a texture
// update for every player. Must be called from the render goroutine, once
// per frame.
//
// Players whose upload fails are closed and removed; their errors are
// reported through [Options].OnPlayerError and joined in the result.
func (m *Manager) Tick() error {
	m.queue.Drain()

	m.mutex.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, player := range m.players {
		players = append(players, player)
	}
	m.mutex.Unlock()

	var errs []error
	for _, player := range players {
		if _, err := player.surface.Update(); err != nil {
			err = fmt.Errorf("player %s: %w", player.id, err)
			m.evict(player, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) evict(player *Player, cause error) {
	m.mutex.Lock()
	if m.players[player.id] == player {
		delete(m.players, player.id)
	}
	closeErr := player.Close()
	m.mutex.Unlock()

	fields := logrus.Fields{
		"function": "Tick",
		"player":   player.id.String(),
		"error":    cause.Error(),
	}
	if closeErr != nil {
		fields["close_error"] = closeErr.Error()
	}
	Logger().WithFields(fields).Error("Texture upload failed, video player closed")
	if m.onPlayerError != nil {
		m.onPlayerError(player.id, cause)
	}
}

// Close closes every open player. If the session factory implements
// [io.Closer], it's closed too, and the manager continues headless: later
// players never get a decoder session.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error
	for id, player := range m.players {
		if err := player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("player %s: %w", id, err))
		}
		delete(m.players, id)
	}
	if closer, ok := m.factory.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.factory = nil
	m.natives = false
	return errors.Join(errs...)
}
