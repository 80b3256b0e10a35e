package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/bytebazaar/storefront/internal/app/domain/product"
	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/app/domain/user"
	"github.com/bytebazaar/storefront/internal/app/storage"
)

func TestUserEmailUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Email: "alice@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Email: "ALICE@example.com"}); !errors.Is(err, storage.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	u, err := store.GetUserByEmail(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", u.Email)
	}
}

func TestMissingRowsReportErrNoRows(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetUser(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("get user: expected sql.ErrNoRows, got %v", err)
	}
	if _, err := store.GetProduct(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("get product: expected sql.ErrNoRows, got %v", err)
	}
	if err := store.DeleteAsset(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("delete asset: expected sql.ErrNoRows, got %v", err)
	}
}

func TestListProductsPublishedFilter(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateProduct(ctx, product.Product{Title: "draft"}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := store.CreateProduct(ctx, product.Product{Title: "live", Published: true}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	all, err := store.ListProducts(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}

	published, err := store.ListProducts(ctx, true)
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 1 || published[0].Title != "live" {
		t.Fatalf("unexpected published set: %+v", published)
	}
}

func TestTransactionSessionIndexFollowsUpdates(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.CreateTransaction(ctx, transaction.Transaction{
		Status:            transaction.StatusPending,
		ProviderSessionID: "placeholder",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	tx.ProviderSessionID = "cs_real"
	if _, err := store.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update transaction: %v", err)
	}

	if _, err := store.GetTransactionBySessionID(ctx, "placeholder"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("old session id should be gone, got %v", err)
	}
	got, err := store.GetTransactionBySessionID(ctx, "cs_real")
	if err != nil {
		t.Fatalf("get by session id: %v", err)
	}
	if got.ID != tx.ID {
		t.Fatalf("wrong transaction: %q vs %q", got.ID, tx.ID)
	}
}

func TestListStaleTransactions(t *testing.T) {
	store := New()
	ctx := context.Background()

	old, _ := store.CreateTransaction(ctx, transaction.Transaction{
		Status:            transaction.StatusPending,
		ProviderSessionID: "old",
	})
	if _, err := store.CreateTransaction(ctx, transaction.Transaction{
		Status:            transaction.StatusCompleted,
		ProviderSessionID: "done",
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	stale, err := store.ListStaleTransactions(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Fatalf("expected only the pending transaction, got %+v", stale)
	}
}
