package assembly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// File categories.
const (
	TypeMain       = "main"
	TypeAttachment = "attachment"
	TypeMerged     = "merged"
	TypeSealed     = "sealed"
	TypeUpload     = "upload"
	TypeProcessed  = "processed"
)

// StoredFile describes one artifact on disk. Files are never mutated in place.
type StoredFile struct {
	ID           string
	Name         string
	Path         string
	Size         int64
	Type         string
	CreatedAt    time.Time
	SourceFiles  []string
	SealConfig   *SealConfig
	ContractInfo *ContractInfo
}

// MarshalJSON names the timestamp after the way the file came to exist.
func (f StoredFile) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"id":   f.ID,
		"name": f.Name,
		"path": f.Path,
		"size": f.Size,
		"type": f.Type,
	}
	m[timestampKey(f.Type)] = f.CreatedAt
	if f.SourceFiles != nil {
		m["sourceFiles"] = f.SourceFiles
	}
	if f.SealConfig != nil {
		m["sealConfig"] = f.SealConfig
	}
	if f.ContractInfo != nil {
		m["contractInfo"] = f.ContractInfo
	}
	return json.Marshal(m)
}

func timestampKey(fileType string) string {
	switch fileType {
	case TypeMain, TypeAttachment:
		return "uploadTime"
	case TypeMerged:
		return "mergedAt"
	case TypeSealed:
		return "sealedAt"
	default:
		return "modifiedAt"
	}
}

// SealConfig places a stamp. Page is 1-based; X and Y are points from the
// lower-left corner of the page.
type SealConfig struct {
	SealID string  `json:"sealId"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// UnmarshalJSON accepts numbers or numeric strings; a missing page means page 1.
func (c *SealConfig) UnmarshalJSON(b []byte) error {
	var raw struct {
		SealID json.RawMessage `json:"sealId"`
		Page   *json.Number    `json:"page"`
		X      json.Number     `json:"x"`
		Y      json.Number     `json:"y"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	c.SealID = ""
	if id := bytes.TrimSpace(raw.SealID); len(id) > 0 && !bytes.Equal(id, []byte("null")) {
		var s string
		if err := json.Unmarshal(id, &s); err == nil {
			c.SealID = s
		} else {
			c.SealID = string(id)
		}
	}

	c.Page = 1
	if raw.Page != nil {
		p, err := strconv.ParseFloat(raw.Page.String(), 64)
		if err != nil {
			return fmt.Errorf("invalid page: %w", err)
		}
		c.Page = int(p)
	}

	var err error
	if c.X, err = parseCoord(raw.X); err != nil {
		return fmt.Errorf("invalid x: %w", err)
	}
	if c.Y, err = parseCoord(raw.Y); err != nil {
		return fmt.Errorf("invalid y: %w", err)
	}
	return nil
}

func parseCoord(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	return n.Float64()
}

// ContractInfo only feeds the output filename.
type ContractInfo struct {
	ContractNumber string `json:"contractNumber"`
	Counterparty   string `json:"counterparty"`
	ContractName   string `json:"contractName"`
}

// Upload is one incoming multipart file.
type Upload struct {
	Filename string
	Content  io.Reader
}

type SealRequest struct {
	FileID       string
	SealConfig   *SealConfig
	ContractInfo ContractInfo
}

type RenameRequest struct {
	FilePath       string `json:"filePath"`
	ContractNumber string `json:"contractNumber"`
	Counterparty   string `json:"counterparty"`
	ContractName   string `json:"contractName"`
}

type Preview struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Type       string `json:"type"`
	Pages      int    `json:"pages"`
	PreviewURL string `json:"previewUrl"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Difference struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Page        int       `json:"page"`
	Position    Position  `json:"position"`
	Content     string    `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type CompareSummary struct {
	TotalChanges          int  `json:"totalChanges"`
	HasSignificantChanges bool `json:"hasSignificantChanges"`
	RecommendApproval     bool `json:"recommendApproval"`
}

type Comparison struct {
	Differences []Difference   `json:"differences"`
	Summary     CompareSummary `json:"summary"`
}
