// Package assembly implements the contract file workflow: upload, merge,
// seal, rename, lookup, preview, compare and listing.
//
// Files live in two directories: incoming (raw uploads, seal images) and
// processed (merge and seal outputs). Every request runs synchronously
// against the local filesystem.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-contractseal/internal/index"
	"go-contractseal/internal/metrics"
	"go-contractseal/internal/pdf"
	"go-contractseal/internal/storage"
	"go-contractseal/internal/utils"

	"github.com/sirupsen/logrus"
)

// FileIndex records where files with generated ids ended up.
type FileIndex interface {
	Put(e index.Entry) error
	Get(id string) (index.Entry, error)
	Repoint(oldPath, newPath, newName string) (int, error)
}

type Config struct {
	IncomingDir  string
	ProcessedDir string
	// SealImageDir is searched for {sealId}.png after IncomingDir.
	SealImageDir string
}

type Service struct {
	incomingDir  string
	processedDir string
	sealImageDir string

	index   FileIndex
	archive storage.Archiver
	metrics *metrics.Metrics
	log     *logrus.Logger
	now     func() time.Time
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

func WithArchiver(a storage.Archiver) Option {
	return func(s *Service) { s.archive = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(cfg Config, idx FileIndex, opts ...Option) (*Service, error) {
	if cfg.IncomingDir == "" || cfg.ProcessedDir == "" {
		return nil, errors.New("incoming and processed directories are required")
	}
	for _, dir := range []string{cfg.IncomingDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	s := &Service{
		incomingDir:  cfg.IncomingDir,
		processedDir: cfg.ProcessedDir,
		sealImageDir: cfg.SealImageDir,
		index:        idx,
		log:          logrus.New(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadMain stores a main contract under {incoming}/{id}.pdf.
func (s *Service) UploadMain(ctx context.Context, up Upload) (f *StoredFile, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("upload", start, err) }()

	if up.Filename == "" {
		return nil, ErrNoFileSelected
	}
	if !utils.AllowedFile(up.Filename, "pdf") {
		return nil, ErrUnsupportedType
	}
	return s.store(ctx, up, TypeMain)
}

// UploadAttachments validates the whole batch before anything is written.
func (s *Service) UploadAttachments(ctx context.Context, ups []Upload) (files []StoredFile, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("upload", start, err) }()

	if len(ups) == 0 {
		return nil, ErrNoUpload
	}
	for _, up := range ups {
		if up.Filename == "" || !utils.AllowedFile(up.Filename, "pdf") {
			return nil, &UnsupportedFileError{Filename: up.Filename}
		}
	}

	files = make([]StoredFile, 0, len(ups))
	for _, up := range ups {
		f, err := s.store(ctx, up, TypeAttachment)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, nil
}

func (s *Service) store(ctx context.Context, up Upload, fileType string) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := utils.GenerateUUID()
	path := filepath.Join(s.incomingDir, id+".pdf")

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(dst, up.Content)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	f := &StoredFile{
		ID:        id,
		Name:      up.Filename,
		Path:      path,
		Size:      size,
		Type:      fileType,
		CreatedAt: s.now(),
	}
	s.remember(f)

	s.log.WithFields(logrus.Fields{
		"fileId": id,
		"name":   up.Filename,
		"type":   fileType,
		"size":   size,
	}).Info("file uploaded")
	return f, nil
}

// Merge writes every page of the main contract followed by every page of each
// attachment, in the given order, to a new processed file.
func (s *Service) Merge(ctx context.Context, mainID string, attachmentIDs []string) (f *StoredFile, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("merge", start, err) }()

	if mainID == "" {
		return nil, &MissingFieldError{Field: "mainFileId"}
	}
	mainPath, ok := s.uploadPath(mainID)
	if !ok {
		return nil, ErrMainNotFound
	}

	inputs := []string{mainPath}
	for _, id := range attachmentIDs {
		p, ok := s.uploadPath(id)
		if !ok {
			return nil, &MissingAttachmentError{ID: id}
		}
		inputs = append(inputs, p)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := utils.GenerateUUID()
	name := id + ".pdf"
	out := filepath.Join(s.processedDir, name)

	if err := pdf.MergePDFs(inputs, out); err != nil {
		os.Remove(out)
		return nil, fmt.Errorf("failed to merge PDFs: %w", err)
	}
	if len(inputs) > 1 {
		if err := pdf.RemoveBookmarks(out); err != nil {
			s.log.WithError(err).WithField("fileId", id).Debug("merged file kept its bookmarks")
		}
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, err
	}

	f = &StoredFile{
		ID:          id,
		Name:        name,
		Path:        out,
		Size:        info.Size(),
		Type:        TypeMerged,
		CreatedAt:   s.now(),
		SourceFiles: append([]string{mainID}, attachmentIDs...),
	}
	s.remember(f)
	s.countPages("merge", out)
	s.archiveFile(ctx, "merged/"+name, out)

	s.log.WithFields(logrus.Fields{
		"fileId":      id,
		"mainFileId":  mainID,
		"attachments": len(attachmentIDs),
	}).Info("files merged")
	return f, nil
}

// ApplySeal stamps the seal image on one page of the target document and
// writes the result under a name built from the contract metadata.
func (s *Service) ApplySeal(ctx context.Context, req SealRequest) (f *StoredFile, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("seal", start, err) }()

	if req.FileID == "" {
		return nil, &MissingFieldError{Field: "fileId"}
	}
	if req.SealConfig == nil {
		return nil, &MissingFieldError{Field: "sealConfig"}
	}
	cfg := *req.SealConfig

	sealImg, ok := s.sealImage(cfg.SealID)
	if !ok {
		return nil, ErrSealImageNotFound
	}

	target, _, err := s.locate(req.FileID, s.processedDir, s.incomingDir)
	if err != nil {
		return nil, err
	}

	total, err := pdf.PageCount(target)
	if err != nil {
		return nil, err
	}
	if cfg.Page < 1 || cfg.Page > total {
		return nil, &PageOutOfRangeError{Page: cfg.Page, Total: total}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contract := withContractDefaults(req.ContractInfo)
	name := utils.ContractFileName(contract.ContractNumber, contract.Counterparty, contract.ContractName)
	out := filepath.Join(s.processedDir, name)

	if err := pdf.StampImage(target, sealImg, cfg.Page, cfg.X, cfg.Y, out); err != nil {
		return nil, err
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, err
	}

	f = &StoredFile{
		ID:           utils.GenerateUUID(),
		Name:         name,
		Path:         out,
		Size:         info.Size(),
		Type:         TypeSealed,
		CreatedAt:    s.now(),
		SealConfig:   &cfg,
		ContractInfo: &contract,
	}
	s.remember(f)
	s.metrics.AddPages("seal", total)
	s.archiveFile(ctx, "sealed/"+utils.SanitizeFilename(name), out)

	s.log.WithFields(logrus.Fields{
		"fileId":   f.ID,
		"sourceId": req.FileID,
		"sealId":   cfg.SealID,
		"page":     cfg.Page,
		"name":     name,
	}).Info("seal applied")
	return f, nil
}

func withContractDefaults(c ContractInfo) ContractInfo {
	if c.ContractNumber == "" {
		c.ContractNumber = "CONTRACT"
	}
	if c.Counterparty == "" {
		c.Counterparty = "PARTNER"
	}
	if c.ContractName == "" {
		c.ContractName = "合同"
	}
	return c
}

// Rename gives an existing stored file its contract name within the same
// directory. Index entries follow the file.
func (s *Service) Rename(ctx context.Context, req RenameRequest) (f *StoredFile, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("rename", start, err) }()

	for _, field := range []struct{ name, value string }{
		{"filePath", req.FilePath},
		{"contractNumber", req.ContractNumber},
		{"counterparty", req.Counterparty},
		{"contractName", req.ContractName},
	} {
		if field.value == "" {
			return nil, &MissingFieldError{Field: field.name}
		}
	}

	oldPath := filepath.Clean(req.FilePath)
	if !s.inStorage(oldPath) {
		return nil, ErrOutsideStorage
	}

	name := utils.ContractFileName(req.ContractNumber, req.Counterparty, req.ContractName)
	newPath := filepath.Join(filepath.Dir(oldPath), name)

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}

	if s.index != nil {
		if _, err := s.index.Repoint(oldPath, newPath, name); err != nil {
			s.log.WithError(err).WithField("path", newPath).Warn("failed to update file index after rename")
		}
	}

	s.log.WithFields(logrus.Fields{"from": oldPath, "to": newPath}).Info("file renamed")
	return &StoredFile{Name: name, Path: newPath}, nil
}

// Preview describes a stored file, including its real page count.
func (s *Service) Preview(ctx context.Context, id string) (*Preview, error) {
	path, name, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	pages, err := pdf.PageCount(path)
	if err != nil {
		return nil, err
	}
	return &Preview{
		ID:         id,
		Name:       name,
		Size:       info.Size(),
		Type:       "pdf",
		Pages:      pages,
		PreviewURL: "/api/files/view/" + id,
	}, nil
}

// Compare does not inspect the documents. It returns the fixed set of changes
// a sealing step introduces.
func (s *Service) Compare(ctx context.Context, originalID, modifiedID string) (*Comparison, error) {
	if originalID == "" {
		return nil, &MissingFieldError{Field: "originalFileId"}
	}
	if modifiedID == "" {
		return nil, &MissingFieldError{Field: "modifiedFileId"}
	}

	now := s.now()
	diffs := []Difference{
		{
			Type:        "seal_added",
			Description: "electronic seal added",
			Page:        1,
			Position:    Position{X: 450, Y: 650},
			Timestamp:   now,
		},
		{
			Type:        "date_added",
			Description: "signing date added",
			Page:        1,
			Position:    Position{X: 400, Y: 700},
			Content:     now.Format("2006-01-02"),
			Timestamp:   now,
		},
	}
	return &Comparison{
		Differences: diffs,
		Summary: CompareSummary{
			TotalChanges:          len(diffs),
			HasSignificantChanges: false,
			RecommendApproval:     true,
		},
	}, nil
}

// List returns one record per PDF in incoming, then processed. The reported
// id is the filename up to its first underscore.
func (s *Service) List(ctx context.Context) ([]StoredFile, error) {
	files := []StoredFile{}
	for _, d := range []struct{ kind, dir string }{
		{TypeUpload, s.incomingDir},
		{TypeProcessed, s.processedDir},
	} {
		entries, err := os.ReadDir(d.dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			id, _, _ := strings.Cut(e.Name(), "_")
			files = append(files, StoredFile{
				ID:        id,
				Name:      e.Name(),
				Path:      filepath.Join(d.dir, e.Name()),
				Size:      info.Size(),
				Type:      d.kind,
				CreatedAt: info.ModTime(),
			})
		}
	}
	return files, nil
}

func (s *Service) remember(f *StoredFile) {
	if s.index == nil {
		return
	}
	err := s.index.Put(index.Entry{
		ID:        f.ID,
		Path:      f.Path,
		Name:      f.Name,
		Type:      f.Type,
		CreatedAt: f.CreatedAt,
	})
	if err != nil {
		s.log.WithError(err).WithField("fileId", f.ID).Warn("failed to index file")
	}
}

func (s *Service) countPages(operation, path string) {
	if n, err := pdf.PageCount(path); err == nil {
		s.metrics.AddPages(operation, n)
	}
}

func (s *Service) archiveFile(ctx context.Context, key, path string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(ctx, key, path, "application/pdf"); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to archive file")
	}
}
