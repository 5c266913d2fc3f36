package handlers

import (
	"fmt"
	"mime"
	"net/http"

	"go-contractseal/internal/assembly"
	"go-contractseal/internal/export"
	"go-contractseal/internal/validation"

	"github.com/go-chi/chi/v5"
)

// UploadFiles godoc
// @Summary      Upload contract files
// @Description  Stores either one main contract (field mainContract) or a batch of attachments (field attachments). Only .pdf names are accepted.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        mainContract  formData  file  false  "Main contract PDF"
// @Param        attachments   formData  file  false  "Attachment PDFs"
// @Success      200  {object}  map[string]interface{}  "{ success, mainContract | attachments, message }"
// @Failure      400  {object}  map[string]string       "{ error }"
// @Router       /api/files/upload [post]
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		h.fileError(w, "upload", &badRequest{msg: "file too large or malformed multipart body"})
		return
	}
	defer r.MultipartForm.RemoveAll()
	form := r.MultipartForm

	// A file input submitted without a selection arrives as an empty-valued
	// field, not as a file part.
	if headers, ok := form.File["mainContract"]; ok || form.Value["mainContract"] != nil {
		if !ok || len(headers) == 0 {
			h.fileError(w, "upload", assembly.ErrNoFileSelected)
			return
		}
		f, err := headers[0].Open()
		if err != nil {
			h.fileError(w, "upload", err)
			return
		}
		defer f.Close()

		stored, err := h.Files.UploadMain(r.Context(), assembly.Upload{Filename: headers[0].Filename, Content: f})
		if err != nil {
			h.fileError(w, "upload", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"mainContract": stored,
			"message":      "main contract uploaded",
		})
		return
	}

	headers := form.File["attachments"]
	if len(headers) == 0 && form.Value["attachments"] != nil {
		h.fileError(w, "upload", &assembly.UnsupportedFileError{})
		return
	}
	if len(headers) == 0 {
		h.fileError(w, "upload", assembly.ErrNoUpload)
		return
	}

	ups := make([]assembly.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.fileError(w, "upload", err)
			return
		}
		defer f.Close()
		ups = append(ups, assembly.Upload{Filename: fh.Filename, Content: f})
	}
	stored, err := h.Files.UploadAttachments(r.Context(), ups)
	if err != nil {
		h.fileError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"attachments": stored,
		"message":     fmt.Sprintf("%d attachments uploaded", len(stored)),
	})
}

type mergeRequest struct {
	MainFileID    string   `json:"mainFileId"`
	AttachmentIDs []string `json:"attachmentIds"`
}

// MergeFiles godoc
// @Summary      Merge contract files
// @Description  Concatenates the main contract with the attachments, in the given order
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "{ mainFileId: string, attachmentIds: [string] }"
// @Success      200  {object}  map[string]interface{}  "{ success, mergedFile, message }"
// @Failure      400  {object}  map[string]string       "{ error }"
// @Failure      404  {object}  map[string]string       "{ error }"
// @Router       /api/files/merge [post]
func (h *APIHandler) MergeFiles(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := h.decodeJSON(r, validation.Merge, &req); err != nil {
		h.fileError(w, "merge", err)
		return
	}
	merged, err := h.Files.Merge(r.Context(), req.MainFileID, req.AttachmentIDs)
	if err != nil {
		h.fileError(w, "merge", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"mergedFile": merged,
		"message":    "files merged",
	})
}

type applySealRequest struct {
	FileID       string                `json:"fileId"`
	SealConfig   *assembly.SealConfig  `json:"sealConfig"`
	ContractInfo assembly.ContractInfo `json:"contractInfo"`
}

// ApplySeal godoc
// @Summary      Apply a seal
// @Description  Stamps a seal image onto one page and stores the result under the contract's canonical name
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "{ fileId, sealConfig: { sealId, page, x, y }, contractInfo }"
// @Success      200  {object}  map[string]interface{}  "{ success, sealedFile, message }"
// @Failure      400  {object}  map[string]string       "{ error }"
// @Failure      404  {object}  map[string]string       "{ error }"
// @Router       /api/files/apply-seal [post]
func (h *APIHandler) ApplySeal(w http.ResponseWriter, r *http.Request) {
	var req applySealRequest
	if err := h.decodeJSON(r, validation.ApplySeal, &req); err != nil {
		h.fileError(w, "seal application", err)
		return
	}
	sealed, err := h.Files.ApplySeal(r.Context(), assembly.SealRequest{
		FileID:       req.FileID,
		SealConfig:   req.SealConfig,
		ContractInfo: req.ContractInfo,
	})
	if err != nil {
		h.fileError(w, "seal application", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"sealedFile": sealed,
		"message":    "seal applied",
	})
}

// RenameFile godoc
// @Summary      Rename a stored file
// @Description  Renames a stored file to {contractNumber}-{counterparty}-{contractName}.pdf in its directory
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "{ filePath, contractNumber, counterparty, contractName }"
// @Success      200  {object}  map[string]interface{}  "{ success, data: { name, path }, message }"
// @Failure      400  {object}  map[string]string       "{ error }"
// @Router       /api/files/rename [post]
func (h *APIHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req assembly.RenameRequest
	if err := h.decodeJSON(r, validation.Rename, &req); err != nil {
		h.fileError(w, "file rename", err)
		return
	}
	renamed, err := h.Files.Rename(r.Context(), req)
	if err != nil {
		h.fileError(w, "file rename", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]string{
			"name": renamed.Name,
			"path": renamed.Path,
		},
		"message": "file renamed",
	})
}

// DownloadFile godoc
// @Summary      Download a file
// @Description  Streams the stored PDF as an attachment
// @Tags         files
// @Produce      application/pdf
// @Param        id  path  string  true  "File ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string  "{ error }"
// @Router       /api/files/download/{id} [get]
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "attachment")
}

// ViewFile godoc
// @Summary      View a file
// @Description  Streams the stored PDF for display in the browser
// @Tags         files
// @Produce      application/pdf
// @Param        id  path  string  true  "File ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string  "{ error }"
// @Router       /api/files/view/{id} [get]
func (h *APIHandler) ViewFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "inline")
}

func (h *APIHandler) serveFile(w http.ResponseWriter, r *http.Request, disposition string) {
	path, name, err := h.Files.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fileError(w, "file retrieval", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}

// PreviewFile godoc
// @Summary      Preview file metadata
// @Description  Returns name, size and page count of a stored file
// @Tags         files
// @Produce      json
// @Param        id  path  string  true  "File ID"
// @Success      200  {object}  map[string]interface{}  "{ success, file }"
// @Failure      404  {object}  map[string]string       "{ error }"
// @Router       /api/files/preview/{id} [get]
func (h *APIHandler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Files.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fileError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": preview})
}

type compareRequest struct {
	OriginalFileID string `json:"originalFileId"`
	ModifiedFileID string `json:"modifiedFileId"`
}

// CompareFiles godoc
// @Summary      Compare two files
// @Description  Reports the differences between an original and a modified contract
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "{ originalFileId, modifiedFileId }"
// @Success      200  {object}  map[string]interface{}  "{ success, differences, summary }"
// @Failure      400  {object}  map[string]string       "{ error }"
// @Router       /api/files/compare [post]
func (h *APIHandler) CompareFiles(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := h.decodeJSON(r, validation.Compare, &req); err != nil {
		h.fileError(w, "comparison", err)
		return
	}
	cmp, err := h.Files.Compare(r.Context(), req.OriginalFileID, req.ModifiedFileID)
	if err != nil {
		h.fileError(w, "comparison", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"differences": cmp.Differences,
		"summary":     cmp.Summary,
	})
}

// ListFiles godoc
// @Summary      List stored files
// @Description  Lists every PDF in the incoming and processed directories
// @Tags         files
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "{ success, files }"
// @Router       /api/files/list [get]
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Files.List(r.Context())
	if err != nil {
		h.fileError(w, "listing", err)
		return
	}
	if files == nil {
		files = []assembly.StoredFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": files})
}

// ExportFiles godoc
// @Summary      Export the file listing
// @Description  Returns the file listing as an XLSX workbook
// @Tags         files
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}  file
// @Router       /api/files/export [get]
func (h *APIHandler) ExportFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Files.List(r.Context())
	if err != nil {
		h.fileError(w, "export", err)
		return
	}
	data, err := export.FilesXLSX(files)
	if err != nil {
		h.fileError(w, "export", fmt.Errorf("building workbook: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "files.xlsx"}))
	_, _ = w.Write(data)
}
