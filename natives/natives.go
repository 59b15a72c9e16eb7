// Package natives checks whether the FFmpeg shared libraries needed by the
// decoder backend can be loaded, before the backend is bootstrapped.
package natives

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	vidtex "github.com/erparts/go-vidtex"
)

// LibPathEnv overrides the directories searched for FFmpeg libraries. It
// holds a list separated by [os.PathListSeparator].
const LibPathEnv = "VIDTEX_FFMPEG_PATH"

// ErrNotFound is returned when a required library can't be loaded from
// any candidate location.
var ErrNotFound = errors.New("ffmpeg libraries not found")

// Libraries probed, in load order.
var Libraries = []string{"avutil", "swresample", "avcodec", "avformat", "swscale"}

// Result describes a completed probe.
type Result struct {
	Available bool
	Paths     map[string]string // library name -> loaded path
	Err       error
}

var (
	probeOnce   sync.Once
	probeResult Result
)

// Probe loads every library in [Libraries] once per process and caches the
// result. Extra directories are searched before the system defaults.
func Probe(dirs ...string) Result {
	probeOnce.Do(func() {
		probeResult = probe(dirs)
		fields := logrus.Fields{
			"function":  "Probe",
			"available": probeResult.Available,
		}
		if probeResult.Err != nil {
			fields["error"] = probeResult.Err.Error()
			vidtex.Logger().WithFields(fields).Warn("FFmpeg libraries unavailable")
			return
		}
		vidtex.Logger().WithFields(fields).Info("FFmpeg libraries found")
	})
	return probeResult
}

func probe(dirs []string) Result {
	result := Result{Paths: make(map[string]string, len(Libraries))}
	for _, lib := range Libraries {
		path, err := loadLibrary(lib, candidatePaths(lib, dirs))
		if err != nil {
			result.Err = fmt.Errorf("%w: lib%s: %w", ErrNotFound, lib, err)
			return result
		}
		result.Paths[lib] = path
	}
	result.Available = true
	return result
}

// Guard wraps a backend bootstrap so it only runs when the probe succeeds.
// A failed probe leaves the manager headless with the probe error as the
// reason.
func Guard(bootstrap vidtex.Bootstrap, dirs ...string) vidtex.Bootstrap {
	return func() (vidtex.SessionFactory, error) {
		if result := Probe(dirs...); !result.Available {
			return nil, result.Err
		}
		return bootstrap()
	}
}

func candidatePaths(lib string, dirs []string) []string {
	names := libraryNames(lib)
	var searchDirs []string
	if env := os.Getenv(LibPathEnv); env != "" {
		searchDirs = append(searchDirs, filepath.SplitList(env)...)
	}
	searchDirs = append(searchDirs, dirs...)
	searchDirs = append(searchDirs, systemDirs()...)

	paths := make([]string, 0, len(names)*(len(searchDirs)+1))
	for _, dir := range searchDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
			// versioned sonames, newest first
			matches, _ := filepath.Glob(filepath.Join(dir, name) + ".*")
			sort.Sort(sort.Reverse(sort.StringSlice(matches)))
			paths = append(paths, matches...)
		}
	}
	// bare names go through the dynamic loader's own search path
	paths = append(paths, names...)
	return paths
}

func systemDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/opt/homebrew/lib", "/usr/local/lib"}
	case "linux":
		return []string{"/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu", "/usr/lib64", "/usr/lib", "/usr/local/lib"}
	default:
		return nil
	}
}

func libraryNames(lib string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"lib" + lib + ".dylib"}
	case "windows":
		return []string{lib + ".dll"}
	default:
		return []string{"lib" + lib + ".so"}
	}
}
