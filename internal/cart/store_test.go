package cart

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lunebox/storefront-backend/pkg/enums"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/pricing"
	"github.com/lunebox/storefront-backend/pkg/types"
)

func money(t *testing.T, amount string) types.Money {
	t.Helper()
	m, err := types.NewMoney(decimal.RequireFromString(amount), "CAD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	return m
}

func boxLine(t *testing.T, variantID, planID string, qty int) AddItemInput {
	t.Helper()
	return AddItemInput{
		VariantID:        variantID,
		SellingPlanID:    planID,
		Quantity:         qty,
		ProductTitle:     "Discovery Box",
		UnitPrice:        money(t, "34.99"),
		CommitmentMonths: 3,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestAddItemMergesByNaturalKey(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.AddItem("s1", boxLine(t, "var-1", "sp-3mo", 1)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	view, err := store.AddItem("s1", boxLine(t, "var-1", "sp-3mo", 1))
	if err != nil {
		t.Fatalf("AddItem (merge): %v", err)
	}

	if len(view.Lines) != 1 {
		t.Fatalf("got %d lines, want 1 merged line", len(view.Lines))
	}
	if view.Lines[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", view.Lines[0].Quantity)
	}
	if view.ItemCount != 2 {
		t.Fatalf("item count = %d, want 2", view.ItemCount)
	}
	if got := view.Subtotal.String(); got != "69.98" {
		t.Fatalf("subtotal = %s, want 69.98", got)
	}
}

func TestAddItemSamePlanDifferentVariantsStayApart(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "sp-3mo", 1))
	view, err := store.AddItem("s1", boxLine(t, "var-1", "", 1))
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("got %d lines, want 2 (plan is part of the line key)", len(view.Lines))
	}
}

func TestAddItemDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	store := NewStore()

	input := boxLine(t, "var-1", "", 0)
	view, err := store.AddItem("s1", input)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if view.Lines[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want default 1", view.Lines[0].Quantity)
	}

	input.Quantity = -2
	_, err = store.AddItem("s1", input)
	assertCode(t, err, pkgerrors.CodeValidation)

	input = boxLine(t, "", "", 1)
	_, err = store.AddItem("s1", input)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemRejectsMixedCurrencies(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))

	usd, err := types.NewMoney(decimal.RequireFromString("29.99"), "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	_, err = store.AddItem("s1", AddItemInput{VariantID: "var-2", Quantity: 1, UnitPrice: usd})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateQuantityToZeroRemovesLine(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "sp-3mo", 2))

	view, err := store.UpdateQuantity("s1", "var-1", "sp-3mo", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("got %d lines, want 0", len(view.Lines))
	}

	// Re-running the same update is a no-op, not an error.
	view, err = store.UpdateQuantity("s1", "var-1", "sp-3mo", 0)
	if err != nil || len(view.Lines) != 0 {
		t.Fatalf("second update: lines=%d err=%v", len(view.Lines), err)
	}
}

func TestUpdateQuantitySetsAbsoluteValue(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 2))

	view, err := store.UpdateQuantity("s1", "var-1", "", 5)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if view.Lines[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5 (absolute, not additive)", view.Lines[0].Quantity)
	}
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))

	if _, err := store.RemoveItem("s1", "var-1", ""); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	view, err := store.RemoveItem("s1", "var-1", "")
	if err != nil {
		t.Fatalf("RemoveItem (absent): %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("got %d lines, want 0", len(view.Lines))
	}
}

func TestDiscountApplyReplaceRemove(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 2))

	ten := &pricing.AppliedDiscount{Code: "BIENVENUE10", Kind: enums.DiscountKindPercentage, Value: decimal.RequireFromString("10")}
	view, err := store.ApplyDiscount("s1", ten)
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if got := view.DiscountedSubtotal.String(); got != "62.98" {
		t.Fatalf("discounted subtotal = %s, want 62.98", got)
	}
	if got := view.Subtotal.String(); got != "69.98" {
		t.Fatalf("subtotal = %s, want 69.98", got)
	}

	fiver := &pricing.AppliedDiscount{Code: "FIVER", Kind: enums.DiscountKindFixed, Value: decimal.RequireFromString("5")}
	view, err = store.ApplyDiscount("s1", fiver)
	if err != nil {
		t.Fatalf("ApplyDiscount (replace): %v", err)
	}
	if view.Discount == nil || view.Discount.Code != "FIVER" {
		t.Fatalf("discount = %+v, want FIVER to replace BIENVENUE10", view.Discount)
	}
	if got := view.DiscountedSubtotal.String(); got != "64.98" {
		t.Fatalf("discounted subtotal = %s, want 64.98", got)
	}

	view, err = store.RemoveDiscount("s1")
	if err != nil {
		t.Fatalf("RemoveDiscount: %v", err)
	}
	if view.Discount != nil {
		t.Fatalf("discount still present: %+v", view.Discount)
	}
	if !view.Subtotal.Equal(view.DiscountedSubtotal) {
		t.Fatalf("totals differ with no discount: %s vs %s", view.Subtotal, view.DiscountedSubtotal)
	}
}

func TestClearDropsLinesAndDiscount(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))
	_, _ = store.ApplyDiscount("s1", &pricing.AppliedDiscount{Code: "X", Kind: enums.DiscountKindFixed, Value: decimal.RequireFromString("1")})

	view, err := store.Clear("s1")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(view.Lines) != 0 || view.Discount != nil || !view.Subtotal.IsZero() {
		t.Fatalf("cart not empty after clear: %+v", view)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))

	if view := store.Get("s2"); len(view.Lines) != 0 {
		t.Fatalf("session s2 sees s1's lines: %+v", view.Lines)
	}
}

func TestBeginCheckoutGuards(t *testing.T) {
	t.Parallel()

	store := NewStore()

	_, err := store.BeginCheckout("s1")
	assertCode(t, err, pkgerrors.CodeValidation)

	_, _ = store.AddItem("s1", boxLine(t, "var-1", "sp-3mo", 2))
	snapshot, err := store.BeginCheckout("s1")
	if err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}
	if len(snapshot.Lines) != 1 || snapshot.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Currency != enums.CurrencyCAD {
		t.Fatalf("currency = %s, want CAD", snapshot.Currency)
	}

	// Second begin while in flight is rejected.
	_, err = store.BeginCheckout("s1")
	assertCode(t, err, pkgerrors.CodeConflict)

	// And the cart is locked against mutation meanwhile.
	_, err = store.AddItem("s1", boxLine(t, "var-2", "", 1))
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestConcurrentBeginCheckoutAdmitsExactlyOne(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.BeginCheckout("s1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won int
	for err := range results {
		if err == nil {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("%d goroutines won the checkout guard, want exactly 1", won)
	}
}

func TestFailCheckoutPreservesCartAndRecordsError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 2))
	if _, err := store.BeginCheckout("s1"); err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}

	store.FailCheckout("s1", errors.New("platform timed out"))

	view := store.Get("s1")
	if view.Status != enums.CartStatusIdle {
		t.Fatalf("status = %s, want idle", view.Status)
	}
	if view.LastError != "platform timed out" {
		t.Fatalf("last error = %q", view.LastError)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Fatalf("cart changed after failure: %+v", view.Lines)
	}

	// Guard released: a retry can begin.
	if _, err := store.BeginCheckout("s1"); err != nil {
		t.Fatalf("retry BeginCheckout: %v", err)
	}
}

func TestHandoffPresentedClearsCart(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))
	_, _ = store.BeginCheckout("s1")
	if err := store.SetHandoff("s1", "https://checkout.example/cs-1"); err != nil {
		t.Fatalf("SetHandoff: %v", err)
	}

	url, err := store.CompleteHandoff("s1", true)
	if err != nil {
		t.Fatalf("CompleteHandoff: %v", err)
	}
	if url != "https://checkout.example/cs-1" {
		t.Fatalf("url = %q", url)
	}

	view := store.Get("s1")
	if len(view.Lines) != 0 || view.Status != enums.CartStatusIdle {
		t.Fatalf("cart not cleared after presented hand-off: %+v", view)
	}
}

func TestHandoffBlockedPreservesCart(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))
	_, _ = store.BeginCheckout("s1")
	_ = store.SetHandoff("s1", "https://checkout.example/cs-1")

	url, err := store.CompleteHandoff("s1", false)
	if err != nil {
		t.Fatalf("CompleteHandoff: %v", err)
	}
	if url != "https://checkout.example/cs-1" {
		t.Fatalf("fallback url = %q", url)
	}

	view := store.Get("s1")
	if len(view.Lines) != 1 {
		t.Fatalf("cart cleared despite blocked popup: %+v", view)
	}
	if view.Status != enums.CartStatusHandoffPending {
		t.Fatalf("status = %s, want handoff_pending", view.Status)
	}
	if view.HandoffURL == "" {
		t.Fatal("fallback url dropped from the cart view")
	}
}

func TestHandoffBlockedThenFallbackTakenClears(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.AddItem("s1", boxLine(t, "var-1", "", 1))
	_, _ = store.BeginCheckout("s1")
	_ = store.SetHandoff("s1", "https://checkout.example/cs-1")

	// Popup blocked: the hand-off stays open.
	if _, err := store.CompleteHandoff("s1", false); err != nil {
		t.Fatalf("CompleteHandoff (blocked): %v", err)
	}

	// The shopper follows the fallback link and the UI confirms it.
	url, err := store.CompleteHandoff("s1", true)
	if err != nil {
		t.Fatalf("CompleteHandoff (fallback taken): %v", err)
	}
	if url != "https://checkout.example/cs-1" {
		t.Fatalf("url = %q", url)
	}

	view := store.Get("s1")
	if len(view.Lines) != 0 || view.Status != enums.CartStatusIdle {
		t.Fatalf("cart not cleared after fallback was taken: %+v", view)
	}
}

func TestCompleteHandoffWithoutPendingCheckout(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, err := store.CompleteHandoff("s1", true)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSetHandoffRequiresInFlightCheckout(t *testing.T) {
	t.Parallel()

	store := NewStore()
	err := store.SetHandoff("s1", "https://checkout.example/cs-1")
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAddItemSnapshotsSelectedOptions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	input := boxLine(t, "var-1", "sp-3mo", 1)
	input.SelectedOptions = []SelectedOption{
		{Name: "Size", Value: "Medium"},
		{Name: "Flavor", Value: "Salted Caramel"},
	}
	if _, err := store.AddItem("s1", input); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// A merge bumps quantity without rewriting the original snapshot.
	merge := boxLine(t, "var-1", "sp-3mo", 1)
	merge.SelectedOptions = []SelectedOption{{Name: "Size", Value: "Large"}}
	view, err := store.AddItem("s1", merge)
	if err != nil {
		t.Fatalf("AddItem (merge): %v", err)
	}

	if len(view.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(view.Lines))
	}
	opts := view.Lines[0].SelectedOptions
	if len(opts) != 2 || opts[0] != (SelectedOption{Name: "Size", Value: "Medium"}) || opts[1] != (SelectedOption{Name: "Flavor", Value: "Salted Caramel"}) {
		t.Fatalf("selected options not snapshotted at add time: %+v", opts)
	}
}
