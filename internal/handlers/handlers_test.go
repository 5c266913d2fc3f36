package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-contractseal/internal/assembly"
	"go-contractseal/internal/index"
	"go-contractseal/internal/seals"
	"go-contractseal/internal/testutil"
	"go-contractseal/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	h         *APIHandler
	router    http.Handler
	incoming  string
	processed string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	idx, err := index.Open("", log)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	e := &env{
		incoming:  filepath.Join(root, "uploads"),
		processed: filepath.Join(root, "processed"),
	}
	sealDir := filepath.Join(root, "seals")

	files, err := assembly.NewService(assembly.Config{
		IncomingDir:  e.incoming,
		ProcessedDir: e.processed,
		SealImageDir: sealDir,
	}, idx, assembly.WithLogger(log))
	require.NoError(t, err)

	registry, err := seals.NewRegistry(filepath.Join(root, "seals.json"), sealDir, idx, log)
	require.NoError(t, err)

	v, err := validation.New()
	require.NoError(t, err)

	e.h = NewAPIHandler(files, registry, v, 10<<20, log)

	r := chi.NewRouter()
	r.Post("/api/files/upload", e.h.UploadFiles)
	r.Post("/api/files/merge", e.h.MergeFiles)
	r.Post("/api/files/apply-seal", e.h.ApplySeal)
	r.Post("/api/files/rename", e.h.RenameFile)
	r.Get("/api/files/download/{id}", e.h.DownloadFile)
	r.Get("/api/files/view/{id}", e.h.ViewFile)
	r.Get("/api/files/preview/{id}", e.h.PreviewFile)
	r.Post("/api/files/compare", e.h.CompareFiles)
	r.Get("/api/files/list", e.h.ListFiles)
	r.Get("/api/files/export", e.h.ExportFiles)
	r.Get("/api/seals", e.h.ListSeals)
	r.Post("/api/seals", e.h.CreateSeal)
	r.Get("/api/seals/{id}", e.h.GetSeal)
	r.Put("/api/seals/{id}", e.h.UpdateSeal)
	r.Delete("/api/seals/{id}", e.h.DeleteSeal)
	r.Get("/api/seals/{id}/image", e.h.SealImage)
	e.router = r
	return e
}

type part struct {
	field, filename string
	data            []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *env) do(t *testing.T, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) postJSON(t *testing.T, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, target, "application/json", bytes.NewBuffer(b))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func (e *env) uploadMain(t *testing.T, pages int) string {
	t.Helper()
	body, ct := multipartBody(t, nil, part{"mainContract", "contract.pdf", testutil.PDF(pages)})
	rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["mainContract"].(map[string]any)["id"].(string)
}

func TestUploadFiles(t *testing.T) {
	e := newEnv(t)

	t.Run("main contract", func(t *testing.T) {
		body, ct := multipartBody(t, nil, part{"mainContract", "contract.pdf", testutil.PDF(2)})
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode(t, rec)
		assert.Equal(t, true, res["success"])
		main := res["mainContract"].(map[string]any)
		assert.Equal(t, "main", main["type"])
		assert.Equal(t, "contract.pdf", main["name"])
		assert.Contains(t, main, "uploadTime")
		assert.FileExists(t, filepath.Join(e.incoming, main["id"].(string)+".pdf"))
	})

	t.Run("attachments", func(t *testing.T) {
		body, ct := multipartBody(t, nil,
			part{"attachments", "a.pdf", testutil.PDF(1)},
			part{"attachments", "b.PDF", testutil.PDF(1)},
		)
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode(t, rec)
		assert.Len(t, res["attachments"], 2)
	})

	t.Run("wrong extension", func(t *testing.T) {
		body, ct := multipartBody(t, nil, part{"mainContract", "contract.docx", testutil.PDF(1)})
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec), "error")
	})

	t.Run("one bad attachment writes nothing", func(t *testing.T) {
		before, _ := os.ReadDir(e.incoming)
		body, ct := multipartBody(t, nil,
			part{"attachments", "a.pdf", testutil.PDF(1)},
			part{"attachments", "notes.txt", []byte("hello")},
		)
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		after, _ := os.ReadDir(e.incoming)
		assert.Len(t, after, len(before))
	})

	t.Run("no file selected", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"mainContract": ""})
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, assembly.ErrNoFileSelected.Error(), decode(t, rec)["error"])
	})

	t.Run("nothing uploaded", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"other": "x"})
		rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, assembly.ErrNoUpload.Error(), decode(t, rec)["error"])
	})
}

func TestMergeFiles(t *testing.T) {
	e := newEnv(t)
	mainID := e.uploadMain(t, 2)

	body, ct := multipartBody(t, nil, part{"attachments", "a.pdf", testutil.PDF(3)})
	rec := e.do(t, http.MethodPost, "/api/files/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code)
	attID := decode(t, rec)["attachments"].([]any)[0].(map[string]any)["id"].(string)

	t.Run("merged", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/merge", map[string]any{"mainFileId": mainID, "attachmentIds": []string{attID}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		merged := decode(t, rec)["mergedFile"].(map[string]any)
		assert.Equal(t, "merged", merged["type"])
		assert.Equal(t, []any{mainID, attID}, merged["sourceFiles"])
		assert.Contains(t, merged, "mergedAt")
	})

	t.Run("missing main id", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/merge", map[string]any{"attachmentIds": []string{attID}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown main", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/merge", map[string]any{"mainFileId": "nope"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, assembly.ErrMainNotFound.Error(), decode(t, rec)["error"])
	})

	t.Run("unknown attachment is named", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/merge", map[string]any{"mainFileId": mainID, "attachmentIds": []string{"ghost"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "ghost")
	})

	t.Run("schema violation", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/merge", map[string]any{"mainFileId": 42})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/files/merge", "application/json", bytes.NewBufferString("{"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func (e *env) createSeal(t *testing.T, name string) int {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"name": name}, part{"image", "seal.png", testutil.PNG(200, 200)})
	rec := e.do(t, http.MethodPost, "/api/seals", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return int(decode(t, rec)["data"].(map[string]any)["id"].(float64))
}

func TestApplySealAndDownload(t *testing.T) {
	e := newEnv(t)
	fileID := e.uploadMain(t, 3)
	sealID := e.createSeal(t, "Acme Ltd")

	rec := e.postJSON(t, "/api/files/apply-seal", map[string]any{
		"fileId":       fileID,
		"sealConfig":   map[string]any{"sealId": sealID, "page": "2", "x": 100, "y": "120.5"},
		"contractInfo": map[string]any{"contractNumber": "HT-001", "counterparty": "Acme", "contractName": "Supply"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sealed := decode(t, rec)["sealedFile"].(map[string]any)
	assert.Equal(t, "HT-001-Acme-Supply.pdf", sealed["name"])
	assert.Equal(t, "sealed", sealed["type"])
	assert.FileExists(t, filepath.Join(e.processed, "HT-001-Acme-Supply.pdf"))

	t.Run("download by sealed id", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/files/download/"+sealed["id"].(string), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("view is inline", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/files/view/"+fileID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline;"))
	})

	t.Run("page out of range", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/apply-seal", map[string]any{
			"fileId":     fileID,
			"sealConfig": map[string]any{"sealId": sealID, "page": 9, "x": 0, "y": 0},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "3 pages")
	})

	t.Run("unknown seal", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/apply-seal", map[string]any{
			"fileId":     fileID,
			"sealConfig": map[string]any{"sealId": "999", "page": 1, "x": 0, "y": 0},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown file", func(t *testing.T) {
		rec := e.postJSON(t, "/api/files/apply-seal", map[string]any{
			"fileId":     "missing",
			"sealConfig": map[string]any{"sealId": sealID, "page": 1, "x": 0, "y": 0},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDownloadUnknown(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/files/download/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec), "error")
}

func TestRenameFile(t *testing.T) {
	e := newEnv(t)
	fileID := e.uploadMain(t, 1)
	oldPath := filepath.Join(e.incoming, fileID+".pdf")

	rec := e.postJSON(t, "/api/files/rename", map[string]any{
		"filePath":       oldPath,
		"contractNumber": "C-9",
		"counterparty":   "Beta",
		"contractName":   "Lease",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.Equal(t, true, res["success"])
	assert.NotEmpty(t, res["message"])
	data := res["data"].(map[string]any)
	assert.Equal(t, "C-9-Beta-Lease.pdf", data["name"])
	assert.Equal(t, filepath.Join(e.incoming, "C-9-Beta-Lease.pdf"), data["path"])
	assert.Len(t, data, 2)
	assert.FileExists(t, filepath.Join(e.incoming, "C-9-Beta-Lease.pdf"))
	assert.NoFileExists(t, oldPath)

	rec = e.postJSON(t, "/api/files/rename", map[string]any{"filePath": oldPath, "contractNumber": "C-9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "counterparty")

	rec = e.postJSON(t, "/api/files/rename", map[string]any{
		"filePath":       "/etc/hosts",
		"contractNumber": "a", "counterparty": "b", "contractName": "c",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewCompareList(t *testing.T) {
	e := newEnv(t)
	fileID := e.uploadMain(t, 4)

	rec := e.do(t, http.MethodGet, "/api/files/preview/"+fileID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, true, res["success"])
	assert.NotContains(t, res, "data")
	file := res["file"].(map[string]any)
	assert.Equal(t, float64(4), file["pages"])
	assert.Equal(t, "pdf", file["type"])
	assert.Equal(t, fileID, file["id"])
	assert.Equal(t, "/api/files/view/"+fileID, file["previewUrl"])

	rec = e.postJSON(t, "/api/files/compare", map[string]any{"originalFileId": "a", "modifiedFileId": "b"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode(t, rec)
	assert.Len(t, res["differences"], 2)
	assert.Equal(t, float64(2), res["summary"].(map[string]any)["totalChanges"])

	rec = e.postJSON(t, "/api/files/compare", map[string]any{"originalFileId": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/files/list", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	files := decode(t, rec)["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "upload", files[0].(map[string]any)["type"])

	rec = e.do(t, http.MethodGet, "/api/files/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "files.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestListFilesEmpty(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/files/list", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"files":[]}`, rec.Body.String())
}

func TestSealEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/seals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())

	id := e.createSeal(t, "Acme Ltd")
	path := fmt.Sprintf("/api/seals/%d", id)

	rec = e.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	seal := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Acme Ltd", seal["name"])
	assert.Equal(t, "circular", seal["type"])
	assert.Equal(t, "active", seal["status"])

	rec = e.do(t, http.MethodGet, path+"/image", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = e.do(t, http.MethodPut, path, "application/json", bytes.NewBufferString(`{"status":"inactive"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	seal = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "inactive", seal["status"])
	assert.Equal(t, "Acme Ltd", seal["name"])

	rec = e.do(t, http.MethodPut, path, "application/json", bytes.NewBufferString(`{"status":5}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = e.do(t, http.MethodDelete, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, true, res["success"])
	assert.NotEmpty(t, res["message"])
	deleted := res["data"].(map[string]any)
	assert.Equal(t, float64(id), deleted["id"])
	assert.Equal(t, "Acme Ltd", deleted["name"])
	assert.Equal(t, "inactive", deleted["status"])

	rec = e.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = e.do(t, http.MethodGet, "/api/seals/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	next := e.createSeal(t, "Beta Co")
	assert.Greater(t, next, id)
}

func TestCreateSealValidation(t *testing.T) {
	e := newEnv(t)

	body, ct := multipartBody(t, map[string]string{"name": ""}, part{"image", "seal.png", testutil.PNG(10, 10)})
	rec := e.do(t, http.MethodPost, "/api/seals", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, seals.ErrNameRequired.Error(), decode(t, rec)["message"])

	body, ct = multipartBody(t, map[string]string{"name": "Acme"})
	rec = e.do(t, http.MethodPost, "/api/seals", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, seals.ErrImageRequired.Error(), decode(t, rec)["message"])

	body, ct = multipartBody(t, map[string]string{"name": "Acme"}, part{"image", "seal.png", []byte("not a png")})
	rec = e.do(t, http.MethodPost, "/api/seals", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 20, 20)), nil))
	body, ct = multipartBody(t, map[string]string{"name": "Acme"}, part{"image", "seal.jpg", jpg.Bytes()})
	rec = e.do(t, http.MethodPost, "/api/seals", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, seals.ErrInvalidImage.Error(), decode(t, rec)["message"])

	rec = e.do(t, http.MethodGet, "/api/seals", "", nil)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}
