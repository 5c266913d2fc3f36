package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go-contractseal/internal/seals"
	"go-contractseal/internal/validation"

	"github.com/go-chi/chi/v5"
)

// sealID parses the {id} path segment. Non-numeric ids cannot name a seal.
func sealID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, seals.ErrNotFound
	}
	return id, nil
}

// ListSeals godoc
// @Summary      List seals
// @Tags         seals
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "{ success, data: [seal] }"
// @Router       /api/seals [get]
func (h *APIHandler) ListSeals(w http.ResponseWriter, r *http.Request) {
	all, err := h.Seals.List(r.Context())
	if err != nil {
		h.sealError(w, "listing seals", err)
		return
	}
	if all == nil {
		all = []seals.Seal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": all})
}

// CreateSeal godoc
// @Summary      Create a seal
// @Description  Registers a seal with its image. Only PNG content is accepted; JPEG and other formats are rejected with 400.
// @Tags         seals
// @Accept       multipart/form-data
// @Produce      json
// @Param        name   formData  string  true   "Company name"
// @Param        type   formData  string  false  "Seal type (default circular)"
// @Param        image  formData  file    true   "Seal image (PNG only)"
// @Success      200  {object}  map[string]interface{}  "{ success, data, message }"
// @Failure      400  {object}  map[string]interface{}  "{ success: false, message } for a missing name or image, or a non-PNG image"
// @Router       /api/seals [post]
func (h *APIHandler) CreateSeal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		h.sealError(w, "creating seal", &badRequest{msg: "file too large or malformed multipart body"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := seals.NewSeal{
		Name: r.FormValue("name"),
		Type: r.FormValue("type"),
	}
	if f, _, err := r.FormFile("image"); err == nil {
		defer f.Close()
		in.Image = f
	}

	seal, err := h.Seals.Create(r.Context(), in)
	if err != nil {
		h.sealError(w, "creating seal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    seal,
		"message": "seal created",
	})
}

// GetSeal godoc
// @Summary      Get a seal
// @Tags         seals
// @Produce      json
// @Param        id  path  int  true  "Seal ID"
// @Success      200  {object}  map[string]interface{}  "{ success, data }"
// @Failure      404  {object}  map[string]interface{}  "{ success: false, message }"
// @Router       /api/seals/{id} [get]
func (h *APIHandler) GetSeal(w http.ResponseWriter, r *http.Request) {
	id, err := sealID(r)
	if err != nil {
		h.sealError(w, "fetching seal", err)
		return
	}
	seal, err := h.Seals.Get(r.Context(), id)
	if err != nil {
		h.sealError(w, "fetching seal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": seal})
}

// UpdateSeal godoc
// @Summary      Update a seal
// @Description  Changes name, type or status; absent fields are left alone
// @Tags         seals
// @Accept       json
// @Produce      json
// @Param        id       path  int     true  "Seal ID"
// @Param        request  body  object  true  "{ name?, type?, status? }"
// @Success      200  {object}  map[string]interface{}  "{ success, data, message }"
// @Failure      404  {object}  map[string]interface{}  "{ success: false, message }"
// @Router       /api/seals/{id} [put]
func (h *APIHandler) UpdateSeal(w http.ResponseWriter, r *http.Request) {
	id, err := sealID(r)
	if err != nil {
		h.sealError(w, "updating seal", err)
		return
	}
	var upd seals.SealUpdate
	if err := h.decodeJSON(r, validation.SealEdit, &upd); err != nil {
		h.sealError(w, "updating seal", err)
		return
	}
	seal, err := h.Seals.Update(r.Context(), id, upd)
	if err != nil {
		h.sealError(w, "updating seal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    seal,
		"message": "seal updated",
	})
}

// DeleteSeal godoc
// @Summary      Delete a seal
// @Description  Removes the seal record; its id is never handed out again
// @Tags         seals
// @Produce      json
// @Param        id  path  int  true  "Seal ID"
// @Success      200  {object}  map[string]interface{}  "{ success, data, message }"
// @Failure      404  {object}  map[string]interface{}  "{ success: false, message }"
// @Router       /api/seals/{id} [delete]
func (h *APIHandler) DeleteSeal(w http.ResponseWriter, r *http.Request) {
	id, err := sealID(r)
	if err != nil {
		h.sealError(w, "deleting seal", err)
		return
	}
	seal, err := h.Seals.Delete(r.Context(), id)
	if err != nil {
		h.sealError(w, "deleting seal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    seal,
		"message": fmt.Sprintf("seal %q deleted", seal.Name),
	})
}

// SealImage godoc
// @Summary      Get a seal image
// @Tags         seals
// @Produce      image/png
// @Param        id  path  int  true  "Seal ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]interface{}  "{ success: false, message }"
// @Router       /api/seals/{id}/image [get]
func (h *APIHandler) SealImage(w http.ResponseWriter, r *http.Request) {
	id, err := sealID(r)
	if err != nil {
		h.sealError(w, "fetching seal image", err)
		return
	}
	if _, err := h.Seals.Get(r.Context(), id); err != nil {
		h.sealError(w, "fetching seal image", err)
		return
	}
	path := h.Seals.ImagePath(strconv.Itoa(id))
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
