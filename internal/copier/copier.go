// Package copier files assets into destination buckets without ever
// overwriting an existing file.
package copier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const maxSuffix = 10000

type Copier struct {
	dryRun bool

	mu sync.Mutex
	// reserved holds paths handed out in this run; in dry-run mode nothing
	// reaches the disk so this is the only record of them.
	reserved map[string]struct{}
}

func New(dryRun bool) *Copier {
	return &Copier{
		dryRun:   dryRun,
		reserved: make(map[string]struct{}),
	}
}

// Place copies src into dir as name, appending _1, _2, ... before the
// extension when the name is taken. It returns the final path.
func (c *Copier) Place(src, dir, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		name = filepath.Base(src)
	}

	if !c.dryRun {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	destPath, err := c.uniquePath(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	c.reserved[destPath] = struct{}{}

	if c.dryRun {
		return destPath, nil
	}

	partPath := destPath + ".part"
	if err := atomicCopy(src, partPath, destPath); err != nil {
		os.Remove(partPath)
		delete(c.reserved, destPath)
		return "", err
	}
	return destPath, nil
}

func (c *Copier) taken(path string) bool {
	if _, ok := c.reserved[path]; ok {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}

func (c *Copier) uniquePath(path string) (string, error) {
	if !c.taken(path) {
		return path, nil
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for i := 1; i < maxSuffix; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if !c.taken(newPath) {
			return newPath, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", path, maxSuffix)
}

func atomicCopy(src, partDest, finalDest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(partDest)
	if err != nil {
		return err
	}

	_, err = io.Copy(dstFile, srcFile)
	if closeErr := dstFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	// Preserve modification time
	info, err := srcFile.Stat()
	if err == nil {
		os.Chtimes(partDest, info.ModTime(), info.ModTime())
	}

	return os.Rename(partDest, finalDest)
}
