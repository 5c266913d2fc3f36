// Package seals keeps the catalog of seal (stamp) images.
//
// The catalog is one JSON array file plus one PNG per seal named {id}.png.
// Every mutation reads the whole array, changes it and rewrites it
// atomically while holding the registry lock.
package seals

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound      = errors.New("seal not found")
	ErrNameRequired  = errors.New("seal name is required")
	ErrImageRequired = errors.New("seal image is required")
	ErrInvalidImage  = errors.New("seal image must be a PNG")
)

const (
	DefaultType   = "circular"
	StatusActive  = "active"
	createdLayout = "2006-01-02"
)

type Seal struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	Status    string `json:"status"`
	ImagePath string `json:"imagePath"`
}

type NewSeal struct {
	Name  string
	Type  string
	Image io.Reader
}

// SealUpdate carries the fields to change; nil fields are left alone.
type SealUpdate struct {
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	Status *string `json:"status"`
}

// IDSource hands out ids that are never repeated.
type IDSource interface {
	NextID(name string) (uint64, error)
}

type Registry struct {
	file     string
	imageDir string
	ids      IDSource
	log      *logrus.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewRegistry(file, imageDir string, ids IDSource, logger *logrus.Logger) (*Registry, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("create seal store dir: %w", err)
	}
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, fmt.Errorf("create seal image dir: %w", err)
	}
	return &Registry{
		file:     file,
		imageDir: imageDir,
		ids:      ids,
		log:      logger,
		now:      time.Now,
	}, nil
}

// ImagePath is where the image of seal id is stored.
func (r *Registry) ImagePath(id string) string {
	return filepath.Join(r.imageDir, id+".png")
}

func (r *Registry) List(ctx context.Context) ([]Seal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) Get(ctx context.Context, id int) (*Seal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &all[i], nil
}

func (r *Registry) Create(ctx context.Context, in NewSeal) (*Seal, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if in.Image == nil {
		return nil, ErrImageRequired
	}
	img := bufio.NewReader(in.Image)
	head, _ := img.Peek(512)
	if http.DetectContentType(head) != "image/png" {
		return nil, ErrInvalidImage
	}
	if in.Type == "" {
		in.Type = DefaultType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := r.load()
	if err != nil {
		return nil, err
	}

	id, err := r.nextID(all)
	if err != nil {
		return nil, err
	}

	imagePath := r.ImagePath(strconv.Itoa(id))
	if err := writeAtomic(imagePath, func(w io.Writer) error {
		_, err := io.Copy(w, img)
		return err
	}); err != nil {
		return nil, fmt.Errorf("save seal image: %w", err)
	}

	seal := Seal{
		ID:        id,
		Name:      in.Name,
		Type:      in.Type,
		CreatedAt: r.now().Format(createdLayout),
		Status:    StatusActive,
		ImagePath: imagePath,
	}
	all = append(all, seal)
	if err := r.save(all); err != nil {
		os.Remove(imagePath)
		return nil, err
	}

	r.log.WithFields(logrus.Fields{"sealId": id, "name": seal.Name}).Info("seal created")
	return &seal, nil
}

func (r *Registry) Update(ctx context.Context, id int, upd SealUpdate) (*Seal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		all[i].Name = *upd.Name
	}
	if upd.Type != nil {
		all[i].Type = *upd.Type
	}
	if upd.Status != nil {
		all[i].Status = *upd.Status
	}

	if err := r.save(all); err != nil {
		return nil, err
	}
	r.log.WithField("sealId", id).Info("seal updated")
	return &all[i], nil
}

// Delete removes the catalog record. The image file stays on disk; its id is
// never handed out again.
func (r *Registry) Delete(ctx context.Context, id int) (*Seal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	deleted := all[i]
	all = slices.Delete(all, i, i+1)

	if err := r.save(all); err != nil {
		return nil, err
	}
	r.log.WithField("sealId", id).Info("seal deleted")
	return &deleted, nil
}

// nextID never returns an id at or below one already in the catalog, which
// covers stores written before the sequence existed.
func (r *Registry) nextID(all []Seal) (int, error) {
	maxID := 0
	for _, s := range all {
		maxID = max(maxID, s.ID)
	}
	if r.ids == nil {
		return maxID + 1, nil
	}
	n, err := r.ids.NextID("seals")
	if err != nil {
		return 0, err
	}
	return max(int(n), maxID+1), nil
}

func (r *Registry) load() ([]Seal, error) {
	data, err := os.ReadFile(r.file)
	if errors.Is(err, os.ErrNotExist) {
		return []Seal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seal store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Seal{}, nil
	}
	var all []Seal
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode seal store: %w", err)
	}
	return all, nil
}

func (r *Registry) save(all []Seal) error {
	return writeAtomic(r.file, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	})
}

func indexOf(all []Seal, id int) int {
	return slices.IndexFunc(all, func(s Seal) bool { return s.ID == id })
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers see either the old or the new content.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
