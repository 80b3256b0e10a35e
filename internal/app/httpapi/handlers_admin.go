package httpapi

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/bytebazaar/storefront/internal/app/services/assets"
	productsvc "github.com/bytebazaar/storefront/internal/app/services/products"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/httputil"
)

// multipartOverhead is slack on top of the upload limit for the other form
// fields and the multipart framing.
const multipartOverhead = 1 << 20

func (h *Handler) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Uploads.MaxSizeBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			h.writeError(w, r, errors.TooLarge("file exceeds upload limit").
				WithDetails("max_size_bytes", h.cfg.Uploads.MaxSizeBytes))
			return
		}
		h.writeError(w, r, errors.InvalidInput("invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("file field is required"))
		return
	}
	defer file.Close()

	var priceCents int64
	if v := r.FormValue("price_cents"); v != "" {
		priceCents, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, r, errors.InvalidInput("price_cents must be an integer"))
			return
		}
	}

	created, err := h.app.Assets.Upload(r.Context(), assets.UploadRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		PriceCents:  priceCents,
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Assets.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"assets": list})
}

func (h *Handler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Assets.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PriceCents  *int64  `json:"price_cents"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.app.Assets.Update(r.Context(), mux.Vars(r)["id"], assets.Update{
		Name:        payload.Name,
		Description: payload.Description,
		PriceCents:  payload.PriceCents,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Assets.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AssetID     string `json:"asset_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents"`
		Currency    string `json:"currency"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.app.Products.Create(r.Context(), payload.AssetID, payload.Title,
		payload.Description, payload.PriceCents, payload.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListAllProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Products.List(r.Context(), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": list})
}

func (h *Handler) handleGetAnyProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		PriceCents  *int64  `json:"price_cents"`
		Currency    *string `json:"currency"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.app.Products.Update(r.Context(), mux.Vars(r)["id"], productsvc.Update{
		Title:       payload.Title,
		Description: payload.Description,
		PriceCents:  payload.PriceCents,
		Currency:    payload.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handlePublishProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Published bool `json:"published"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.app.Products.SetPublished(r.Context(), mux.Vars(r)["id"], payload.Published)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Products.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAllTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Checkout.AllTransactions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": list})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": list})
}

func (h *Handler) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.app.Users.SetRole(r.Context(), mux.Vars(r)["id"], payload.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
