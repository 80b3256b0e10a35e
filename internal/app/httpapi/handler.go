// Package httpapi exposes the storefront services over HTTP.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bytebazaar/storefront/internal/app"
	"github.com/bytebazaar/storefront/internal/config"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/httputil"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
	"github.com/bytebazaar/storefront/internal/middleware"
	"github.com/bytebazaar/storefront/internal/payments"
)

const maxJSONBody = 1 << 20

// Options carries the handler's optional collaborators.
type Options struct {
	// Webhook verifies incoming payment provider webhooks. Required when the
	// webhook route should work.
	Webhook payments.WebhookParser
	// Metrics enables request instrumentation when set.
	Metrics *metrics.Metrics
	// Gatherer backs the /metrics endpoint. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer
}

// Handler is the HTTP front of the storefront.
type Handler struct {
	app     *app.Application
	cfg     *config.Config
	webhook payments.WebhookParser
	log     *logging.Logger
	router  *mux.Router
}

// NewHandler builds the router with the full middleware chain.
func NewHandler(application *app.Application, cfg *config.Config, opts Options, log *logging.Logger) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewDefault("httpapi")
	}

	h := &Handler{
		app:     application,
		cfg:     cfg,
		webhook: opts.Webhook,
		log:     log,
		router:  mux.NewRouter(),
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	authMW := middleware.NewAuthMiddleware(application.Signer, log, []string{
		"/healthz",
		"/metrics",
		"/auth/register",
		"/auth/login",
		"/products",
		"/products/",
		"/webhooks/payment",
		// Download links carry their own single-use token.
		"/downloads/",
	})
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)

	h.router.Use(middleware.LoggingMiddleware(log))
	if opts.Metrics != nil {
		h.router.Use(middleware.MetricsMiddleware(opts.Metrics))
	}
	h.router.Use(cors.Handler)
	h.router.Use(authMW.Handler)
	h.router.Use(limiter.Handler)

	h.routes(gatherer)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes(gatherer prometheus.Gatherer) {
	r := h.router

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/products", h.handleListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", h.handleGetProduct).Methods(http.MethodGet)

	r.HandleFunc("/webhooks/payment", h.handlePaymentWebhook).Methods(http.MethodPost)
	r.HandleFunc("/downloads/{token}", h.handleDownload).Methods(http.MethodGet)

	me := r.PathPrefix("/me").Subrouter()
	me.Use(middleware.RequireUserID)
	me.HandleFunc("", h.handleMe).Methods(http.MethodGet)
	me.HandleFunc("/purchases", h.handleMyPurchases).Methods(http.MethodGet)
	me.HandleFunc("/purchases/{id}/download-link", h.handleIssueDownloadLink).Methods(http.MethodPost)
	me.HandleFunc("/transactions", h.handleMyTransactions).Methods(http.MethodGet)
	me.HandleFunc("/transactions/{id}/receipt", h.handleReceipt).Methods(http.MethodGet)

	r.Handle("/checkout", middleware.RequireUserID(http.HandlerFunc(h.handleCheckout))).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/assets", h.handleUploadAsset).Methods(http.MethodPost)
	admin.HandleFunc("/assets", h.handleListAssets).Methods(http.MethodGet)
	admin.HandleFunc("/assets/{id}", h.handleGetAsset).Methods(http.MethodGet)
	admin.HandleFunc("/assets/{id}", h.handleUpdateAsset).Methods(http.MethodPatch)
	admin.HandleFunc("/assets/{id}", h.handleDeleteAsset).Methods(http.MethodDelete)
	admin.HandleFunc("/products", h.handleCreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products", h.handleListAllProducts).Methods(http.MethodGet)
	admin.HandleFunc("/products/{id}", h.handleGetAnyProduct).Methods(http.MethodGet)
	admin.HandleFunc("/products/{id}", h.handleUpdateProduct).Methods(http.MethodPatch)
	admin.HandleFunc("/products/{id}", h.handleDeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/products/{id}/publish", h.handlePublishProduct).Methods(http.MethodPost)
	admin.HandleFunc("/transactions", h.handleAllTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/role", h.handleSetUserRole).Methods(http.MethodPost)

	// Preflight requests never match the method-restricted routes above, and
	// mux only runs Use middleware on matched routes. This catch-all gives the
	// CORS middleware a match to short-circuit.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps service errors onto the wire shape, logging server faults.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("internal error", err)
	}
	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.InvalidInput("invalid request body").WithDetails("error", err.Error())
	}
	return nil
}
