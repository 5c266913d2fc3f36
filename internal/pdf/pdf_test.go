package pdf

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"go-contractseal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePDF(t, dir, "three.pdf", 3)

	n, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = PageCount(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestMergePDFs(t *testing.T) {
	dir := t.TempDir()
	main := testutil.WritePDF(t, dir, "main.pdf", 2)
	att1 := testutil.WritePDF(t, dir, "att1.pdf", 1)
	att2 := testutil.WritePDF(t, dir, "att2.pdf", 3)

	t.Run("concatenates all pages", func(t *testing.T) {
		out := filepath.Join(dir, "merged.pdf")
		require.NoError(t, MergePDFs([]string{main, att1, att2}, out))

		n, err := PageCount(out)
		require.NoError(t, err)
		assert.Equal(t, 6, n)

		// main 1-2, att1 1, att2 1-3
		want := []int{0, 1, 0, 0, 1, 2}
		for page, idx := range want {
			content := testutil.PageContent(t, out, page+1)
			assert.Contains(t, content, testutil.PageMarker(idx), "page %d", page+1)
		}
	})

	t.Run("single file is copied", func(t *testing.T) {
		out := filepath.Join(dir, "single.pdf")
		require.NoError(t, MergePDFs([]string{main}, out))

		want, _ := os.ReadFile(main)
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("no files", func(t *testing.T) {
		assert.Error(t, MergePDFs(nil, filepath.Join(dir, "none.pdf")))
	})
}

func TestStampImage(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WritePDF(t, dir, "src.pdf", 3)
	img := testutil.WritePNG(t, dir, "seal.png")
	out := filepath.Join(dir, "sealed.pdf")

	require.NoError(t, StampImage(src, img, 2, 400, 100, out))

	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	placed := regexp.MustCompile(`(?s)\b400(\.0+)? 100(\.0+)? cm\b.*\bDo\b`)
	for page := 1; page <= 3; page++ {
		before := testutil.PageContent(t, src, page)
		after := testutil.PageContent(t, out, page)
		assert.Contains(t, after, testutil.PageMarker(page-1), "page %d", page)
		if page == 2 {
			assert.Regexp(t, placed, after)
			continue
		}
		assert.Equal(t, before, after, "page %d changed", page)
	}
	assert.NotRegexp(t, placed, testutil.PageContent(t, src, 2))

	t.Run("missing image", func(t *testing.T) {
		err := StampImage(src, filepath.Join(dir, "nope.png"), 1, 0, 0, filepath.Join(dir, "x.pdf"))
		assert.Error(t, err)
	})

	t.Run("in place", func(t *testing.T) {
		path := testutil.WritePDF(t, dir, "inplace.pdf", 2)
		require.NoError(t, StampImage(path, img, 1, 50, 60, path))
		assert.Regexp(t, `\b50(\.0+)? 60(\.0+)? cm\b`, testutil.PageContent(t, path, 1))
	})

	t.Run("failure keeps the source when writing in place", func(t *testing.T) {
		sub := t.TempDir()
		path := filepath.Join(sub, "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

		assert.Error(t, StampImage(path, img, 1, 0, 0, path))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "not a pdf", string(got))
		entries, err := os.ReadDir(sub)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp output left behind")
	})
}

func TestStampWatermark(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		w, h  int
		scale float64
	}{
		{"square", 200, 200, 0.5},
		{"wide", 400, 100, 0.25},
		{"tall", 50, 80, 1.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := filepath.Join(dir, tt.name+".png")
			require.NoError(t, os.WriteFile(img, testutil.PNG(tt.w, tt.h), 0o644))

			wm, err := stampWatermark(img, 400, 100)
			require.NoError(t, err)
			assert.True(t, wm.ScaleAbs)
			assert.InDelta(t, tt.scale, wm.Scale, 1e-4)
			assert.InDelta(t, 400, wm.Dx, 1e-9)
			assert.InDelta(t, 100, wm.Dy, 1e-9)
			// the longer side lands on the box edge
			longest := float64(max(tt.w, tt.h)) * wm.Scale
			assert.InDelta(t, StampBox, longest, 0.01)
		})
	}
}

func TestFitScale(t *testing.T) {
	dir := t.TempDir()
	img := testutil.WritePNG(t, dir, "seal.png")

	scale, err := fitScale(img, StampBox)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scale, 1e-9)

	notImage := filepath.Join(dir, "seal.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0o644))
	_, err = fitScale(notImage, StampBox)
	assert.Error(t, err)
}
