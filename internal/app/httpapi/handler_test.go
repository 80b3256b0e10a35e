package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytebazaar/storefront/internal/app"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/config"
	"github.com/bytebazaar/storefront/internal/payments"
)

type testEnv struct {
	handler *Handler
	app     *app.Application
	fake    *payments.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Server.BaseURL = "https://shop.test"
	cfg.Uploads.MaxSizeBytes = 1 << 20

	blobs, err := blobstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs blobstore: %v", err)
	}

	fake := payments.NewFake()
	application, err := app.New(cfg, app.Stores{}, app.Deps{
		Blobs:    blobs,
		Provider: fake,
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	handler := NewHandler(application, cfg, Options{Webhook: fake}, nil)
	return &testEnv{handler: handler, app: application, fake: fake}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return e.do(t, method, path, token, bytes.NewReader(body), "application/json")
}

// registerAndLogin creates an account, optionally promotes it, and returns a
// session token.
func (e *testEnv) registerAndLogin(t *testing.T, email string, admin bool) string {
	t.Helper()
	ctx := context.Background()

	resp := e.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"name":     "Test User",
		"password": "correct horse",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, resp.Code, resp.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	if admin {
		if _, err := e.app.Users.SetRole(ctx, created.ID, "admin"); err != nil {
			t.Fatalf("promote %s: %v", email, err)
		}
	}

	resp = e.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct horse",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, resp.Code, resp.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return login.Token
}

func (e *testEnv) uploadAsset(t *testing.T, token, filename string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Font Pack")
	_ = mw.WriteField("description", "Ten display fonts")
	_ = mw.WriteField("price_cents", "1500")
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	resp := e.do(t, http.MethodPost, "/admin/assets", token, &buf, mw.FormDataContentType())
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload asset: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var a struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode asset: %v", err)
	}
	return a.ID
}

func TestStorefrontLifecycle(t *testing.T) {
	e := newTestEnv(t)

	adminToken := e.registerAndLogin(t, "admin@example.com", true)
	buyerToken := e.registerAndLogin(t, "buyer@example.com", false)

	// Admin publishes a product over an uploaded asset.
	assetID := e.uploadAsset(t, adminToken, "fonts.zip", []byte("zip bytes"))

	resp := e.doJSON(t, http.MethodPost, "/admin/products", adminToken, map[string]interface{}{
		"asset_id":    assetID,
		"title":       "Font Pack Vol. 1",
		"description": "Ten display fonts",
		"price_cents": 1500,
		"currency":    "usd",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var prod struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &prod); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	// Hidden from the catalog until published.
	resp = e.do(t, http.MethodGet, "/products/"+prod.ID, "", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unpublished product: expected 404, got %d", resp.Code)
	}

	resp = e.doJSON(t, http.MethodPost, "/admin/products/"+prod.ID+"/publish", adminToken, map[string]bool{"published": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodGet, "/products", "", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("catalog: expected 200, got %d", resp.Code)
	}
	var catalog struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &catalog); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(catalog.Products) != 1 || catalog.Products[0].ID != prod.ID {
		t.Fatalf("unexpected catalog: %s", resp.Body.String())
	}

	// Buyer starts checkout and the provider confirms it on the webhook.
	resp = e.doJSON(t, http.MethodPost, "/checkout", buyerToken, map[string]string{"product_id": prod.ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var begin struct {
		TransactionID string `json:"transaction_id"`
		SessionID     string `json:"session_id"`
		CheckoutURL   string `json:"checkout_url"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &begin); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if begin.CheckoutURL == "" {
		t.Fatalf("missing checkout url")
	}

	webhook := map[string]string{"type": "checkout.completed", "session_id": begin.SessionID}
	resp = e.doJSON(t, http.MethodPost, "/webhooks/payment", "", webhook)
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	// Redelivery is acknowledged without creating a second purchase.
	resp = e.doJSON(t, http.MethodPost, "/webhooks/payment", "", webhook)
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook replay: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = e.do(t, http.MethodGet, "/me/purchases", buyerToken, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("purchases: expected 200, got %d", resp.Code)
	}
	var purchases struct {
		Purchases []struct {
			ID string `json:"id"`
		} `json:"purchases"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &purchases); err != nil {
		t.Fatalf("decode purchases: %v", err)
	}
	if len(purchases.Purchases) != 1 {
		t.Fatalf("expected 1 purchase, got %s", resp.Body.String())
	}
	purchaseID := purchases.Purchases[0].ID

	// Single-use download link.
	resp = e.do(t, http.MethodPost, "/me/purchases/"+purchaseID+"/download-link", buyerToken, nil, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("download link: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var link struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	downloadPath := strings.TrimPrefix(link.URL, "https://shop.test")

	resp = e.do(t, http.MethodGet, downloadPath, "", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Body.String() != "zip bytes" {
		t.Fatalf("wrong download body: %q", resp.Body.String())
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "fonts.zip") {
		t.Fatalf("unexpected content disposition: %q", cd)
	}

	resp = e.do(t, http.MethodGet, downloadPath, "", nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("reused link: expected 403, got %d", resp.Code)
	}

	// Receipt for the completed transaction.
	resp = e.do(t, http.MethodGet, "/me/transactions/"+begin.TransactionID+"/receipt", buyerToken, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected a PDF, got %q", ct)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("response is not a PDF")
	}
}

func TestReceiptRequiresCompletedTransaction(t *testing.T) {
	e := newTestEnv(t)

	adminToken := e.registerAndLogin(t, "admin@example.com", true)
	buyerToken := e.registerAndLogin(t, "buyer@example.com", false)

	assetID := e.uploadAsset(t, adminToken, "fonts.zip", []byte("zip bytes"))
	resp := e.doJSON(t, http.MethodPost, "/admin/products", adminToken, map[string]interface{}{
		"asset_id":    assetID,
		"title":       "Font Pack",
		"price_cents": 1500,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create product: %d: %s", resp.Code, resp.Body.String())
	}
	var prod struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &prod)
	resp = e.doJSON(t, http.MethodPost, "/admin/products/"+prod.ID+"/publish", adminToken, map[string]bool{"published": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("publish: %d", resp.Code)
	}

	resp = e.doJSON(t, http.MethodPost, "/checkout", buyerToken, map[string]string{"product_id": prod.ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkout: %d: %s", resp.Code, resp.Body.String())
	}
	var begin struct {
		TransactionID string `json:"transaction_id"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &begin)

	// Still pending: no receipt.
	resp = e.do(t, http.MethodGet, "/me/transactions/"+begin.TransactionID+"/receipt", buyerToken, nil, "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("pending receipt: expected 409, got %d: %s", resp.Code, resp.Body.String())
	}

	// And not someone else's receipt either.
	otherToken := e.registerAndLogin(t, "other@example.com", false)
	resp = e.do(t, http.MethodGet, "/me/transactions/"+begin.TransactionID+"/receipt", otherToken, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("foreign receipt: expected 403, got %d", resp.Code)
	}
}

func TestAuthorizationBoundaries(t *testing.T) {
	e := newTestEnv(t)
	buyerToken := e.registerAndLogin(t, "buyer@example.com", false)

	// No token.
	resp := e.do(t, http.MethodGet, "/me/purchases", "", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.Code)
	}

	// Garbage token.
	resp = e.do(t, http.MethodGet, "/me/purchases", "garbage", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token, got %d", resp.Code)
	}

	// Customer hitting admin surface.
	resp = e.do(t, http.MethodGet, "/admin/assets", buyerToken, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a customer on /admin, got %d", resp.Code)
	}

	// Unknown webhook events are acknowledged, not failed.
	resp = e.doJSON(t, http.MethodPost, "/webhooks/payment", "", map[string]string{"type": "invoice.created"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for an ignored event, got %d", resp.Code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.registerAndLogin(t, "admin@example.com", true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Huge")
	fw, _ := mw.CreateFormFile("file", "huge.zip")
	_, _ = fw.Write(bytes.Repeat([]byte("x"), (1<<20)+1))
	_ = mw.Close()

	resp := e.do(t, http.MethodPost, "/admin/assets", adminToken, &buf, mw.FormDataContentType())
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/healthz", "", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestPreflightRequestsGetCORSHeaders(t *testing.T) {
	e := newTestEnv(t)

	// Browsers preflight the non-simple requests: JSON POSTs carrying an
	// Authorization header. Method-restricted routes never match OPTIONS, so
	// these go through the catch-all.
	for _, path := range []string{"/checkout", "/me/purchases", "/admin/assets"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://frontend.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
		resp := httptest.NewRecorder()
		e.handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("preflight %s: expected 200, got %d: %s", path, resp.Code, resp.Body.String())
		}
		if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://frontend.test" {
			t.Fatalf("preflight %s: missing allow-origin, got %q", path, got)
		}
		if methods := resp.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, http.MethodPost) {
			t.Fatalf("preflight %s: POST not allowed: %q", path, methods)
		}
		if headers := resp.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(headers, "Authorization") {
			t.Fatalf("preflight %s: Authorization not allowed: %q", path, headers)
		}
	}
}
