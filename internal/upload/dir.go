package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/you-humble/jobclient/internal/domain"

	"golang.org/x/sync/errgroup"
)

const statWorkers = 8

// LoadDir lists the regular files of dir whose extension is in exts (all
// files when exts is empty), sorted by name. Files are stat'ed concurrently.
func LoadDir(ctx context.Context, dir string, exts ...string) ([]domain.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !matchExt(e.Name(), exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)

	files := make([]domain.File, len(paths))
	eg, eCtx := errgroup.WithContext(ctx)
	eg.SetLimit(statWorkers)
	for i, p := range paths {
		eg.Go(func() error {
			if err := eCtx.Err(); err != nil {
				return err
			}
			f, err := domain.LocalFile(p)
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}

func matchExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
