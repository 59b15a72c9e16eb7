// Package scan builds video handle registries from resource directories.
//
// A resource root is laid out as <root>/<namespace>/<videos dir>/<path>.
// Every file accepted by the manager's extension predicate becomes a
// [vidtex.FileHandle] identified as "namespace:path".
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	vidtex "github.com/erparts/go-vidtex"
)

// DefaultVideosDir is the per-namespace directory scanned for videos.
const DefaultVideosDir = "videos"

var (
	_ vidtex.ReloadSource = Dir{}
	_ vidtex.ReloadSource = Roots{}
)

// Dir scans a single resource root.
type Dir struct {
	// OS directory the handles are resolved against.
	Root string

	// Filesystem to walk. Defaults to os.DirFS(Root).
	FS fs.FS

	// Per-namespace videos directory. Defaults to [DefaultVideosDir].
	VideosDir string
}

// Scan walks every namespace of the root. Files with names that aren't
// valid identifiers are skipped with a warning.
func (d Dir) Scan(ctx context.Context, accept func(name string) bool) (map[vidtex.Identifier]vidtex.Handle, error) {
	fsys := d.FS
	if fsys == nil {
		fsys = os.DirFS(d.Root)
	}
	videosDir := d.VideosDir
	if videosDir == "" {
		videosDir = DefaultVideosDir
	}

	namespaces, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read resource root %q: %w", d.Root, err)
	}

	handles := make(map[vidtex.Identifier]vidtex.Handle)
	for _, entry := range namespaces {
		if !entry.IsDir() {
			continue
		}
		namespace := entry.Name()
		base := path.Join(namespace, videosDir)
		err := fs.WalkDir(fsys, base, func(p string, e fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if p == base && errors.Is(walkErr, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if e.IsDir() || !accept(e.Name()) {
				return nil
			}

			rel := strings.TrimPrefix(p, base+"/")
			id, err := vidtex.NewIdentifier(namespace, rel)
			if err != nil {
				vidtex.Logger().WithFields(logrus.Fields{
					"function": "Scan",
					"root":     d.Root,
					"file":     p,
					"error":    err.Error(),
				}).Warn("Skipping video with invalid identifier")
				return nil
			}
			handles[id] = vidtex.NewFileHandle(id, filepath.Join(d.Root, filepath.FromSlash(p)))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", base, err)
		}
	}

	vidtex.Logger().WithFields(logrus.Fields{
		"function": "Scan",
		"root":     d.Root,
		"videos":   len(handles),
	}).Debug("Resource root scanned")
	return handles, nil
}

// Roots scans several resource roots concurrently. When two roots provide
// the same identifier, the later root wins.
type Roots []Dir

func (r Roots) Scan(ctx context.Context, accept func(name string) bool) (map[vidtex.Identifier]vidtex.Handle, error) {
	results := make([]map[vidtex.Identifier]vidtex.Handle, len(r))
	group, ctx := errgroup.WithContext(ctx)
	for i, dir := range r {
		group.Go(func() error {
			handles, err := dir.Scan(ctx, accept)
			if err != nil {
				return err
			}
			results[i] = handles
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[vidtex.Identifier]vidtex.Handle)
	for _, handles := range results {
		for id, handle := range handles {
			merged[id] = handle
		}
	}
	return merged, nil
}
