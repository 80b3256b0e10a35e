// Package downloads issues and redeems single-use signed download links.
package downloads

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"time"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/auth"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
)

// Link is an issued download URL.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Content is a redeemed download ready for streaming. When the blob backend
// supports presigned URLs, RedirectURL is set instead of Body.
type Content struct {
	Asset       asset.Asset
	Body        io.ReadCloser
	RedirectURL string
}

// Service issues and redeems download links.
type Service struct {
	purchases storage.PurchaseStore
	assets    storage.AssetStore
	blobs     blobstore.Store
	signer    *auth.Signer
	tokens    TokenStore
	linkTTL   time.Duration
	baseURL   string
	metrics   *metrics.Metrics
	log       *logging.Logger
}

// New creates the downloads service. baseURL is the public prefix download
// paths are built on, e.g. "https://shop.example.com".
func New(purchases storage.PurchaseStore, assets storage.AssetStore, blobs blobstore.Store,
	signer *auth.Signer, tokens TokenStore, linkTTL time.Duration, baseURL string,
	m *metrics.Metrics, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("downloads")
	}
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &Service{
		purchases: purchases,
		assets:    assets,
		blobs:     blobs,
		signer:    signer,
		tokens:    tokens,
		linkTTL:   linkTTL,
		baseURL:   baseURL,
		metrics:   m,
		log:       log,
	}
}

// IssueLink mints a single-use download link for a purchase the user owns.
func (s *Service) IssueLink(ctx context.Context, userID, purchaseID string) (Link, error) {
	pur, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Link{}, errors.NotFound("purchase not found")
		}
		return Link{}, errors.Internal("get purchase", err)
	}
	if pur.UserID != userID {
		return Link{}, errors.Forbidden("purchase not owned by caller")
	}

	token, tokenID, err := s.signer.SignDownload(userID, pur.ID, pur.AssetID, s.linkTTL)
	if err != nil {
		return Link{}, errors.Internal("sign download token", err)
	}
	if err := s.tokens.Register(ctx, tokenID, s.linkTTL); err != nil {
		return Link{}, errors.Internal("register download token", err)
	}

	return Link{
		URL:       s.baseURL + "/downloads/" + token,
		ExpiresAt: time.Now().Add(s.linkTTL),
	}, nil
}

// Redeem verifies and consumes a download token, returning the asset content.
func (s *Service) Redeem(ctx context.Context, token string) (Content, error) {
	claims, err := s.signer.ParseDownload(token)
	if err != nil {
		s.denied()
		return Content{}, errors.Forbidden("invalid download link")
	}

	ok, err := s.tokens.Consume(ctx, claims.TokenID)
	if err != nil {
		return Content{}, errors.Internal("consume download token", err)
	}
	if !ok {
		s.denied()
		s.log.LogSecurityEvent(ctx, "download_token_reuse", map[string]interface{}{
			"purchase_id": claims.PurchaseID,
		})
		return Content{}, errors.Forbidden("download link expired or already used")
	}

	a, err := s.assets.GetAsset(ctx, claims.AssetID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Content{}, errors.NotFound("asset no longer available")
		}
		return Content{}, errors.Internal("get asset", err)
	}

	// Object-store backends serve the bytes themselves via a presigned URL.
	if presigner, ok := s.blobs.(blobstore.Presigner); ok {
		url, err := presigner.PresignGet(ctx, a.StorageKey, s.linkTTL)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordDownload()
			}
			return Content{Asset: a, RedirectURL: url}, nil
		}
		s.log.WithContext(ctx).WithError(err).Warn("presign failed, streaming directly")
	}

	body, err := s.blobs.Open(ctx, a.StorageKey)
	if err != nil {
		return Content{}, errors.Internal("open blob", err)
	}
	if s.metrics != nil {
		s.metrics.RecordDownload()
	}
	return Content{Asset: a, Body: body}, nil
}

func (s *Service) denied() {
	if s.metrics != nil {
		s.metrics.RecordDownloadDenied()
	}
}

// Sweeper periodically drops expired entries from a MemoryTokenStore. It is
// a no-op wrapper when Redis handles expiry natively.
type Sweeper struct {
	store    *MemoryTokenStore
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	log      *logging.Logger
}

// NewSweeper creates a sweeper for the memory token store.
func NewSweeper(store *MemoryTokenStore, interval time.Duration, log *logging.Logger) *Sweeper {
	if log == nil {
		log = logging.NewDefault("download-sweeper")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: store, interval: interval, log: log}
}

// Name implements system.Service.
func (s *Sweeper) Name() string { return "download-sweeper" }

// Start implements system.Service.
func (s *Sweeper) Start(_ context.Context) error {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.store.Sweep(); removed > 0 {
					s.log.WithField("removed", removed).Debug("swept expired download tokens")
				}
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

// Stop implements system.Service.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}
