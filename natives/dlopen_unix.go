//go:build darwin || freebsd || linux

package natives

import (
	"errors"

	"github.com/ebitengine/purego"
)

func loadLibrary(lib string, paths []string) (string, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := purego.Dlsym(handle, lib+"_version"); err != nil {
			purego.Dlclose(handle)
			lastErr = err
			continue
		}
		return path, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate paths")
	}
	return "", lastErr
}
