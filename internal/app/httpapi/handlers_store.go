package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/httputil"
	"github.com/bytebazaar/storefront/internal/middleware"
	"github.com/bytebazaar/storefront/internal/receipts"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.app.Users.Register(r.Context(), payload.Email, payload.Name, payload.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, token, err := h.app.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Products.List(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": list})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Products.GetPublished(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if payload.ProductID == "" {
		h.writeError(w, r, errors.InvalidInput("product_id is required"))
		return
	}

	result, err := h.app.Checkout.Begin(r.Context(), middleware.GetUserID(r.Context()), payload.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		h.writeError(w, r, errors.Internal("webhook parser not configured", nil))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("read webhook payload"))
		return
	}

	event, err := h.webhook.ParseWebhook(payload, r.Header)
	if err != nil {
		h.log.LogSecurityEvent(r.Context(), "webhook_verification_failed", map[string]interface{}{
			"error": err.Error(),
		})
		h.writeError(w, r, errors.InvalidInput("webhook verification failed"))
		return
	}

	if err := h.app.Checkout.HandleEvent(r.Context(), event); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleMyPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Checkout.Purchases(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"purchases": list})
}

func (h *Handler) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Checkout.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": list})
}

func (h *Handler) handleIssueDownloadLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.app.Downloads.IssueLink(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	content, err := h.app.Downloads.Redeem(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if content.RedirectURL != "" {
		http.Redirect(w, r, content.RedirectURL, http.StatusFound)
		return
	}
	defer content.Body.Close()

	contentType := content.Asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.Asset.Filename))
	if content.Asset.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Asset.SizeBytes, 10))
	}
	if _, err := io.Copy(w, content.Body); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("stream download")
	}
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tx, err := h.app.Checkout.Transaction(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tx.UserID != middleware.GetUserID(ctx) {
		h.writeError(w, r, errors.Forbidden("transaction not owned by caller"))
		return
	}
	if tx.Status != transaction.StatusCompleted {
		h.writeError(w, r, errors.Conflict("receipt available for completed transactions only").
			WithDetails("status", string(tx.Status)))
		return
	}

	u, err := h.app.Users.Get(ctx, tx.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.app.Products.Get(ctx, tx.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "receipt-"+tx.ID+".pdf"))
	if err := receipts.Render(w, receipts.Receipt{
		TransactionID: tx.ID,
		PurchaseID:    tx.PurchaseID,
		BuyerEmail:    u.Email,
		BuyerName:     u.Name,
		ProductTitle:  p.Title,
		AmountCents:   tx.AmountCents,
		Currency:      tx.Currency,
		CompletedAt:   tx.UpdatedAt,
	}); err != nil {
		h.log.WithContext(ctx).WithError(err).Error("render receipt")
	}
}
