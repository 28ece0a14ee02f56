// Package cart holds the authoritative per-session cart state. Carts
// live in process memory for the lifetime of a shopper session; all
// mutations are synchronous and the store is the only writer.
package cart

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lunebox/storefront-backend/pkg/enums"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/pricing"
)

// lineKey is the natural identity of a cart line. The same variant on
// different selling plans is two distinct lines.
type lineKey struct {
	variantID     string
	sellingPlanID string
}

type cartState struct {
	lines      map[lineKey]*Line
	order      []lineKey // insertion order for stable views
	discount   *pricing.AppliedDiscount
	status     enums.CartStatus
	handoffURL string
	lastError  string
	updatedAt  time.Time
}

// Store keeps every live cart, keyed by session ID. Safe for concurrent
// use from HTTP handlers; per-session ordering follows lock order.
type Store struct {
	mu    sync.Mutex
	carts map[string]*cartState
	now   func() time.Time
}

// NewStore builds an empty cart store.
func NewStore() *Store {
	return &Store{
		carts: map[string]*cartState{},
		now:   time.Now,
	}
}

func (s *Store) cart(sessionID string) *cartState {
	state, ok := s.carts[sessionID]
	if !ok {
		state = &cartState{
			lines:  map[lineKey]*Line{},
			status: enums.CartStatusIdle,
		}
		s.carts[sessionID] = state
	}
	return state
}

// AddItem merges a line into the cart. Re-adding the same
// (variant, selling plan) pair adds quantities; it never duplicates
// the line or overwrites the original snapshot.
func (s *Store) AddItem(sessionID string, input AddItemInput) (View, error) {
	if input.VariantID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	if cur, ok := state.currency(); ok && cur != input.UnitPrice.Currency {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cart is priced in %s, cannot add a %s item", cur, input.UnitPrice.Currency))
	}

	key := lineKey{variantID: input.VariantID, sellingPlanID: input.SellingPlanID}
	if existing, ok := state.lines[key]; ok {
		existing.Quantity += qty
	} else {
		state.lines[key] = &Line{
			VariantID:        input.VariantID,
			SellingPlanID:    input.SellingPlanID,
			ProductTitle:     input.ProductTitle,
			VariantTitle:     input.VariantTitle,
			SelectedOptions:  input.SelectedOptions,
			ImageURL:         input.ImageURL,
			UnitPrice:        input.UnitPrice,
			Quantity:         qty,
			CommitmentMonths: input.CommitmentMonths,
		}
		state.order = append(state.order, key)
	}
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// UpdateQuantity sets a line's quantity outright. Zero or negative
// removes the line, which makes the operation idempotent.
func (s *Store) UpdateQuantity(sessionID, variantID, sellingPlanID string, quantity int) (View, error) {
	if variantID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	key := lineKey{variantID: variantID, sellingPlanID: sellingPlanID}
	if quantity <= 0 {
		state.removeLine(key)
	} else if line, ok := state.lines[key]; ok {
		line.Quantity = quantity
	}
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// RemoveItem drops a line. Removing an absent line is a no-op.
func (s *Store) RemoveItem(sessionID, variantID, sellingPlanID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	state.removeLine(lineKey{variantID: variantID, sellingPlanID: sellingPlanID})
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// Clear empties the cart, discount included.
func (s *Store) Clear(sessionID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	state.reset()
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// ApplyDiscount attaches a validated discount. A cart carries at most
// one; applying replaces whatever was there.
func (s *Store) ApplyDiscount(sessionID string, discount *pricing.AppliedDiscount) (View, error) {
	if discount == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "discount is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	state.discount = discount
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// RemoveDiscount detaches the applied discount, if any.
func (s *Store) RemoveDiscount(sessionID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if err := state.guardMutable(); err != nil {
		return View{}, err
	}

	state.discount = nil
	state.touch(s.now())

	return s.viewLocked(sessionID, state), nil
}

// Get returns the current derived view without mutating anything.
func (s *Store) Get(sessionID string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(sessionID, s.cart(sessionID))
}

// BeginCheckout snapshots the cart and moves it into the in-flight
// state. A second begin while one is in flight is rejected without
// touching the cart, which is what keeps the remote call single-flight.
func (s *Store) BeginCheckout(sessionID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if state.status == enums.CartStatusCreatingCheckout {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already being created for this cart")
	}
	if len(state.lines) == 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "cannot check out an empty cart")
	}

	state.status = enums.CartStatusCreatingCheckout
	state.lastError = ""
	state.touch(s.now())

	snapshot := Snapshot{
		SessionID: sessionID,
		Lines:     state.orderedLines(),
		Discount:  state.discount,
	}
	if cur, ok := state.currency(); ok {
		snapshot.Currency = cur
	}
	return snapshot, nil
}

// FailCheckout records the failure and releases the in-flight guard.
// The cart contents are untouched so the shopper can retry.
func (s *Store) FailCheckout(sessionID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if state.status != enums.CartStatusCreatingCheckout {
		return
	}
	state.status = enums.CartStatusIdle
	if cause != nil {
		state.lastError = cause.Error()
	}
	state.touch(s.now())
}

// SetHandoff records the remote checkout URL. The cart survives until
// the hand-off is confirmed presented.
func (s *Store) SetHandoff(sessionID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if state.status != enums.CartStatusCreatingCheckout {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in flight for this cart")
	}
	state.status = enums.CartStatusHandoffPending
	state.handoffURL = url
	state.touch(s.now())
	return nil
}

// DropDiscount removes the discount outside the mutability guard, for
// the checkout path that voids a stale code mid-creation.
func (s *Store) DropDiscount(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	state.discount = nil
	state.touch(s.now())
}

// CompleteHandoff resolves a pending hand-off. When the checkout
// surface was actually presented the cart is cleared; when it was not
// (popup blocked) the cart stays pending and the URL is returned so the
// UI can offer a manual link. A blocked report keeps the hand-off open,
// so taking the fallback link later still clears through here.
func (s *Store) CompleteHandoff(sessionID string, presented bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cart(sessionID)
	if state.status != enums.CartStatusHandoffPending {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "no pending checkout hand-off for this cart")
	}

	url := state.handoffURL
	if presented {
		state.reset()
	}
	state.touch(s.now())
	return url, nil
}

func (s *Store) viewLocked(sessionID string, state *cartState) View {
	view := View{
		SessionID:          sessionID,
		Status:             state.status,
		Lines:              state.orderedLines(),
		Discount:           state.discount,
		HandoffURL:         state.handoffURL,
		LastError:          state.lastError,
		Subtotal:           pricing.RoundForDisplay(state.subtotal()),
		DiscountedSubtotal: pricing.RoundForDisplay(pricing.DiscountedPrice(state.subtotal(), state.discount)),
		UpdatedAt:          state.updatedAt,
	}
	for _, line := range view.Lines {
		view.ItemCount += line.Quantity
	}
	if cur, ok := state.currency(); ok {
		view.Currency = cur
	}
	return view
}

func (c *cartState) guardMutable() error {
	if c.status == enums.CartStatusCreatingCheckout {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart is locked while a checkout is being created")
	}
	return nil
}

func (c *cartState) currency() (enums.Currency, bool) {
	for _, line := range c.lines {
		return line.UnitPrice.Currency, true
	}
	return "", false
}

func (c *cartState) subtotal() (total decimal.Decimal) {
	for _, line := range c.lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

func (c *cartState) orderedLines() []Line {
	lines := make([]Line, 0, len(c.lines))
	for _, key := range c.order {
		if line, ok := c.lines[key]; ok {
			copied := *line
			copied.PromoEligible = pricing.EligibleForCode(copied.CommitmentMonths)
			lines = append(lines, copied)
		}
	}
	return lines
}

func (c *cartState) removeLine(key lineKey) {
	if _, ok := c.lines[key]; !ok {
		return
	}
	delete(c.lines, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *cartState) reset() {
	c.lines = map[lineKey]*Line{}
	c.order = nil
	c.discount = nil
	c.status = enums.CartStatusIdle
	c.handoffURL = ""
	c.lastError = ""
}

func (c *cartState) touch(at time.Time) {
	c.updatedAt = at
}
