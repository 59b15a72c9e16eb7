//go:build !(darwin || freebsd || linux)

package natives

import "fmt"

func loadLibrary(lib string, paths []string) (string, error) {
	return "", fmt.Errorf("dynamic loading not supported on this platform")
}
