package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go-contractseal/internal/index"
)

// Resolve maps a file id to its path and filename. Ids recorded in the index
// resolve exactly; any other id is matched against filenames in incoming,
// then processed.
func (s *Service) Resolve(ctx context.Context, id string) (path, name string, err error) {
	return s.locate(id, s.incomingDir, s.processedDir)
}

// locate checks the index, then scans dirs in order. Within a directory a
// filename starting with id wins over one merely containing it; ties go to
// the lexically first name.
func (s *Service) locate(id string, dirs ...string) (string, string, error) {
	if !validID(id) {
		return "", "", ErrFileNotFound
	}

	if s.index != nil {
		e, err := s.index.Get(id)
		if err == nil && fileExists(e.Path) {
			return e.Path, filepath.Base(e.Path), nil
		}
		if err != nil && !errors.Is(err, index.ErrNotFound) {
			s.log.WithError(err).WithField("fileId", id).Warn("file index lookup failed")
		}
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		var contains string
		for _, e := range entries {
			n := e.Name()
			if e.IsDir() || strings.HasPrefix(n, ".") {
				continue
			}
			if strings.HasPrefix(n, id) {
				return filepath.Join(dir, n), n, nil
			}
			if contains == "" && strings.Contains(n, id) {
				contains = n
			}
		}
		if contains != "" {
			return filepath.Join(dir, contains), contains, nil
		}
	}
	return "", "", ErrFileNotFound
}

// uploadPath finds a merge input: {incoming}/{id}.pdf, or an indexed file.
func (s *Service) uploadPath(id string) (string, bool) {
	if !validID(id) {
		return "", false
	}
	p := filepath.Join(s.incomingDir, id+".pdf")
	if fileExists(p) {
		return p, true
	}
	if s.index != nil {
		if e, err := s.index.Get(id); err == nil && fileExists(e.Path) {
			return e.Path, true
		}
	}
	return "", false
}

// sealImage finds {sealId}.png in incoming, then in the registry image dir.
func (s *Service) sealImage(sealID string) (string, bool) {
	if !validID(sealID) {
		return "", false
	}
	for _, dir := range []string{s.incomingDir, s.sealImageDir} {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, sealID+".png")
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

// inStorage reports whether path sits directly inside incoming or processed.
func (s *Service) inStorage(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	parent := filepath.Dir(abs)
	for _, dir := range []string{s.incomingDir, s.processedDir} {
		d, err := filepath.Abs(dir)
		if err == nil && d == parent {
			return true
		}
	}
	return false
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
