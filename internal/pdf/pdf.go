// Package pdf provides PDF manipulation utilities built on pdfcpu.
//
// Functions:
//   - MergePDFs: Concatenates whole documents in the given order.
//   - RemoveBookmarks: Removes bookmarks from a PDF file in-place.
//   - PageCount: Returns the number of pages of a PDF file.
//   - StampImage: Places an image on a single page inside a fixed-size box.
//
// These functions are used by the assembly service to produce merged and
// sealed contracts.
package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// StampBox is the edge length, in points, of the square a stamp is fitted into.
const StampBox = 100.0

// minScale is the smallest absolute scale factor pdfcpu accepts.
const minScale = 0.01

// MergePDFs writes all pages of files[0], then all pages of files[1], and so on.
// A single input is copied unchanged.
func MergePDFs(files []string, outputPath string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to merge")
	}
	if len(files) == 1 {
		return copyFile(files[0], outputPath)
	}
	config := model.NewDefaultConfiguration()
	return pdfapi.MergeCreateFile(files, outputPath, false, config)
}

func RemoveBookmarks(pdfPath string) error {
	config := model.NewDefaultConfiguration()
	return pdfapi.RemoveBookmarksFile(pdfPath, pdfPath, config)
}

func PageCount(pdfPath string) (int, error) {
	n, err := pdfapi.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// StampImage stamps imgPath onto page pageNum (1-based) of pdfPath and writes
// the result to outputPath. Every other page is copied through untouched.
// x, y: lower-left corner of the stamp in points, measured from the lower-left
// corner of the page.
// The image keeps its aspect ratio; its longer side is StampBox points.
// PNG alpha is preserved.
func StampImage(pdfPath, imgPath string, pageNum int, x, y float64, outputPath string) error {
	wm, err := stampWatermark(imgPath, x, y)
	if err != nil {
		return err
	}

	// The result goes to a temp file first: outputPath may be pdfPath itself.
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	config := model.NewDefaultConfiguration()
	pages := []string{strconv.Itoa(pageNum)}
	if err := pdfapi.AddWatermarksFile(pdfPath, tmpPath, pages, wm, config); err != nil {
		return fmt.Errorf("failed to apply stamp: %w", err)
	}
	return os.Rename(tmpPath, outputPath)
}

// stampWatermark describes imgPath anchored bottom-left at (x, y), fitted
// into a StampBox square, on top of the page content at full opacity.
func stampWatermark(imgPath string, x, y float64) (*model.Watermark, error) {
	scale, err := fitScale(imgPath, StampBox)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scale:%.4f abs, rot:0, op:1", x, y, scale)

	wm, err := pdfcpu.ParseImageWatermarkDetails(imgPath, desc, true, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stamp image: %w", err)
	}
	return wm, nil
}

// fitScale returns the absolute scale factor that makes the longer side of
// the image equal to box.
func fitScale(imgPath string, box float64) (float64, error) {
	f, err := os.Open(imgPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode stamp image: %w", err)
	}
	longest := math.Max(float64(cfg.Width), float64(cfg.Height))
	if longest <= 0 {
		return 0, fmt.Errorf("stamp image has no size")
	}
	return math.Max(box/longest, minScale), nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
