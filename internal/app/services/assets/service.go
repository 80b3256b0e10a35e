// Package assets manages uploaded file assets: validation, blob storage and
// catalog metadata.
package assets

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"io"
	"strings"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
)

// UploadRequest carries one incoming file upload.
type UploadRequest struct {
	Name        string
	Description string
	Filename    string
	ContentType string
	SizeBytes   int64
	PriceCents  int64
	Body        io.Reader
}

// Update carries optional field changes for an asset.
type Update struct {
	Name        *string
	Description *string
	PriceCents  *int64
}

// Service manages assets.
type Service struct {
	store        storage.AssetStore
	products     storage.ProductStore
	blobs        blobstore.Store
	maxSizeBytes int64
	allowedExts  []string
	metrics      *metrics.Metrics
	log          *logging.Logger
}

// New creates the assets service. allowedExts entries are matched as filename
// suffixes, lowercased (".zip", ".tar.gz").
func New(store storage.AssetStore, products storage.ProductStore, blobs blobstore.Store,
	maxSizeBytes int64, allowedExts []string, m *metrics.Metrics, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("assets")
	}
	exts := make([]string, 0, len(allowedExts))
	for _, e := range allowedExts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Service{
		store:        store,
		products:     products,
		blobs:        blobs,
		maxSizeBytes: maxSizeBytes,
		allowedExts:  exts,
		metrics:      m,
		log:          log,
	}
}

func (s *Service) extensionAllowed(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range s.allowedExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Upload validates the file, streams it into the blob store and records the
// asset. A failed catalog write removes the stored blob.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (asset.Asset, error) {
	if strings.TrimSpace(req.Name) == "" {
		return asset.Asset{}, errors.InvalidInput("name is required")
	}
	if req.Filename == "" {
		return asset.Asset{}, errors.InvalidInput("filename is required")
	}
	if !s.extensionAllowed(req.Filename) {
		return asset.Asset{}, errors.InvalidInput("file type not allowed").
			WithDetails("allowed", s.allowedExts)
	}
	if req.SizeBytes > s.maxSizeBytes {
		return asset.Asset{}, errors.TooLarge("file exceeds upload limit").
			WithDetails("max_size_bytes", s.maxSizeBytes)
	}
	if req.PriceCents < 0 {
		return asset.Asset{}, errors.InvalidInput("price must not be negative")
	}

	key := blobstore.NewKey()
	hasher := sha256.New()
	// Cap the stream one byte past the limit so undeclared oversized bodies
	// are caught too.
	limited := io.LimitReader(req.Body, s.maxSizeBytes+1)
	counted := &countingReader{r: io.TeeReader(limited, hasher)}

	// The declared size is untrusted until the stream is counted; storing with
	// an unknown length keeps backend length checks out of the picture.
	if err := s.blobs.Put(ctx, key, counted, -1, req.ContentType); err != nil {
		return asset.Asset{}, errors.Internal("store file", err)
	}
	if counted.n > s.maxSizeBytes {
		_ = s.blobs.Delete(ctx, key)
		return asset.Asset{}, errors.TooLarge("file exceeds upload limit").
			WithDetails("max_size_bytes", s.maxSizeBytes)
	}
	if req.SizeBytes > 0 && counted.n != req.SizeBytes {
		_ = s.blobs.Delete(ctx, key)
		return asset.Asset{}, errors.InvalidInput("file size does not match declared size").
			WithDetails("declared_bytes", req.SizeBytes).
			WithDetails("actual_bytes", counted.n)
	}

	created, err := s.store.CreateAsset(ctx, asset.Asset{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   counted.n,
		StorageKey:  key,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, key)
		return asset.Asset{}, errors.Internal("record asset", err)
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(created.SizeBytes)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"asset_id": created.ID,
		"size":     created.SizeBytes,
	}).Info("asset uploaded")
	return created, nil
}

// Get fetches an asset by id.
func (s *Service) Get(ctx context.Context, id string) (asset.Asset, error) {
	a, err := s.store.GetAsset(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return asset.Asset{}, errors.NotFound("asset not found")
		}
		return asset.Asset{}, errors.Internal("get asset", err)
	}
	return a, nil
}

// List returns all assets.
func (s *Service) List(ctx context.Context) ([]asset.Asset, error) {
	list, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, errors.Internal("list assets", err)
	}
	return list, nil
}

// Update applies the provided field changes.
func (s *Service) Update(ctx context.Context, id string, upd Update) (asset.Asset, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return asset.Asset{}, err
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return asset.Asset{}, errors.InvalidInput("name must not be empty")
		}
		a.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		a.Description = *upd.Description
	}
	if upd.PriceCents != nil {
		if *upd.PriceCents < 0 {
			return asset.Asset{}, errors.InvalidInput("price must not be negative")
		}
		a.PriceCents = *upd.PriceCents
	}

	updated, err := s.store.UpdateAsset(ctx, a)
	if err != nil {
		return asset.Asset{}, errors.Internal("update asset", err)
	}
	return updated, nil
}

// Delete removes an asset and its blob. Assets referenced by products cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	refs, err := s.products.ListProductsByAsset(ctx, id)
	if err != nil {
		return errors.Internal("check product references", err)
	}
	if len(refs) > 0 {
		return errors.Conflict("asset is referenced by products").
			WithDetails("product_count", len(refs))
	}

	if err := s.store.DeleteAsset(ctx, id); err != nil {
		return errors.Internal("delete asset", err)
	}
	if err := s.blobs.Delete(ctx, a.StorageKey); err != nil {
		// Catalog row is gone; an orphaned blob is a cleanup concern, not a
		// request failure.
		s.log.WithContext(ctx).WithError(err).WithField("asset_id", id).Warn("delete blob")
	}
	return nil
}

// Open returns a reader over the asset's bytes.
func (s *Service) Open(ctx context.Context, a asset.Asset) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, a.StorageKey)
	if err != nil {
		return nil, errors.Internal("open blob", err)
	}
	return rc, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
