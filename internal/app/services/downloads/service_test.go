package downloads

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/domain/purchase"
	"github.com/bytebazaar/storefront/internal/app/storage/memory"
	"github.com/bytebazaar/storefront/internal/auth"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/errors"
)

type fixture struct {
	svc      *Service
	signer   *auth.Signer
	purchase purchase.Purchase
	asset    asset.Asset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	blobs, err := blobstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs blobstore: %v", err)
	}
	key := blobstore.NewKey()
	if err := blobs.Put(ctx, key, strings.NewReader("the goods"), 9, "application/zip"); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	a, err := store.CreateAsset(ctx, asset.Asset{
		Name:       "Pack",
		Filename:   "pack.zip",
		StorageKey: key,
		SizeBytes:  9,
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	pur, err := store.CreatePurchase(ctx, purchase.Purchase{
		UserID:    "buyer-1",
		ProductID: "prod-1",
		AssetID:   a.ID,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	signer, err := auth.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	svc := New(store, store, blobs, signer, NewMemoryTokenStore(),
		time.Minute, "https://shop.test", nil, nil)
	return &fixture{svc: svc, signer: signer, purchase: pur, asset: a}
}

func TestIssueAndRedeemOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.svc.IssueLink(ctx, "buyer-1", f.purchase.ID)
	if err != nil {
		t.Fatalf("issue link: %v", err)
	}
	if !strings.HasPrefix(link.URL, "https://shop.test/downloads/") {
		t.Fatalf("unexpected link: %q", link.URL)
	}

	token := strings.TrimPrefix(link.URL, "https://shop.test/downloads/")
	content, err := f.svc.Redeem(ctx, token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	defer content.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content.Body); err != nil {
		t.Fatalf("read content: %v", err)
	}
	if buf.String() != "the goods" {
		t.Fatalf("wrong content: %q", buf.String())
	}

	// The same link is dead after one use.
	if _, err := f.svc.Redeem(ctx, token); errors.HTTPStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 on reuse, got %v", err)
	}
}

func TestIssueLinkRejectsForeignPurchase(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.IssueLink(context.Background(), "someone-else", f.purchase.ID)
	if errors.HTTPStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for a foreign purchase, got %v", err)
	}
}

func TestIssueLinkUnknownPurchase(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.IssueLink(context.Background(), "buyer-1", "missing")
	if errors.HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown purchase, got %v", err)
	}
}

func TestRedeemRejectsForgedToken(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Redeem(context.Background(), "not-a-jwt"); errors.HTTPStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for a forged token, got %v", err)
	}

	// Signed with the right secret but never registered: still refused.
	orphan, _, err := f.signer.SignDownload("buyer-1", f.purchase.ID, f.asset.ID, time.Minute)
	if err != nil {
		t.Fatalf("sign download: %v", err)
	}
	if _, err := f.svc.Redeem(context.Background(), orphan); errors.HTTPStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for an unregistered token, got %v", err)
	}
}

func TestMemoryTokenStoreSweep(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Register(ctx, "fresh", time.Minute); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.Register(ctx, "stale", -time.Minute); err != nil {
		t.Fatalf("register: %v", err)
	}

	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept token, got %d", removed)
	}

	ok, err := store.Consume(ctx, "fresh")
	if err != nil || !ok {
		t.Fatalf("fresh token should be consumable: ok=%v err=%v", ok, err)
	}
	ok, err = store.Consume(ctx, "fresh")
	if err != nil || ok {
		t.Fatalf("second consume must fail: ok=%v err=%v", ok, err)
	}
}
