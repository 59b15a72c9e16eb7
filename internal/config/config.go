// Package config loads the vidtexplay configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "vidtex.json"

const (
	// ErrCodeNotFound means an explicitly requested file doesn't exist.
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid means the file can't be read or parsed, or a field is illegal.
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultVideosDir    = "videos"
	DefaultLogLevel     = "info"
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 720
)

// FileConfig mirrors vidtex.json.
type FileConfig struct {
	Roots      []string      `json:"roots"`
	VideosDir  string        `json:"videos_dir"`
	Extensions []string      `json:"extensions"`
	LogLevel   string        `json:"log_level"`
	Natives    *NativeConfig `json:"natives"`
	Window     *WindowConfig `json:"window"`
}

type NativeConfig struct {
	LibPaths []string `json:"lib_paths"`
	Disabled bool     `json:"disabled"`
}

type WindowConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config is the normalized configuration consumed by the application.
type Config struct {
	Roots          []string // absolute resource roots, in override order
	VideosDir      string
	Extensions     []string // empty means the manager defaults
	LogLevel       logrus.Level
	NativeLibPaths []string
	NativesOff     bool
	WindowWidth    int
	WindowHeight   int
}

// Error is a configuration error carrying a machine-readable code.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: config file %q: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: config file %q", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code, or "" if err isn't an [*Error].
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Default returns the configuration used when no file is present: the
// working directory as the only resource root.
func Default(cwd string) Config {
	cfg, _ := normalize(cwd, FileConfig{}, "")
	return cfg
}

// Load reads the configuration. An empty path means <cwd>/vidtex.json,
// which is optional; an explicit path must exist. Relative roots are
// resolved against the file's directory.
func Load(cwd, path string) (Config, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = filepath.Join(cwdAbs, FileName)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwdAbs, path)
	}

	fc, exists, err := readFileConfig(path)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	if !exists {
		if explicit {
			return Config{}, &Error{Code: ErrCodeNotFound, Path: path, Err: os.ErrNotExist}
		}
		return Default(cwdAbs), nil
	}
	return normalize(filepath.Dir(path), fc, path)
}

func normalize(base string, fc FileConfig, cfgPath string) (Config, error) {
	cfg := Config{
		VideosDir:    strings.TrimSpace(fc.VideosDir),
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
	}
	if cfg.VideosDir == "" {
		cfg.VideosDir = DefaultVideosDir
	}
	if filepath.IsAbs(cfg.VideosDir) || strings.Contains(filepath.ToSlash(cfg.VideosDir), "..") {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("videos_dir must be a relative path inside each namespace: %q", fc.VideosDir)}
	}

	for _, root := range fc.Roots {
		if root = strings.TrimSpace(root); root != "" {
			cfg.Roots = append(cfg.Roots, absCleanFrom(base, root))
		}
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{filepath.Clean(base)}
	}

	for _, ext := range fc.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if strings.ContainsAny(ext, `/\.`) {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("invalid extension %q", ext)}
		}
		cfg.Extensions = append(cfg.Extensions, ext)
	}

	levelName := strings.TrimSpace(fc.LogLevel)
	if levelName == "" {
		levelName = DefaultLogLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	cfg.LogLevel = level

	if fc.Natives != nil {
		for _, p := range fc.Natives.LibPaths {
			if p = strings.TrimSpace(p); p != "" {
				cfg.NativeLibPaths = append(cfg.NativeLibPaths, absCleanFrom(base, p))
			}
		}
		cfg.NativesOff = fc.Natives.Disabled
	}

	if fc.Window != nil {
		if fc.Window.Width < 0 || fc.Window.Height < 0 {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("negative window size %dx%d", fc.Window.Width, fc.Window.Height)}
		}
		if fc.Window.Width > 0 {
			cfg.WindowWidth = fc.Window.Width
		}
		if fc.Window.Height > 0 {
			cfg.WindowHeight = fc.Window.Height
		}
	}
	return cfg, nil
}

// absCleanFrom makes p absolute relative to base, and cleans it.
func absCleanFrom(base, p string) string {
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig reads and parses a JSON config file. A missing file is
// not an error: exists is false instead.
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
