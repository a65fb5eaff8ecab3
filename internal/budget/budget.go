// Package budget holds the quote entity, its line items and every operation
// that mutates them. Each mutation leaves the quote priced.
package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/budgets/internal/pricing"
)

// Category groups line items on a quote.
type Category string

const (
	CategoryProduction Category = "Produção"
	CategoryEquipment  Category = "Equipamentos"
	CategoryLogistics  Category = "Logística"
	CategoryOther      Category = "Outros"
)

// Categories lists the valid categories in presentation order.
func Categories() []Category {
	return []Category{CategoryProduction, CategoryEquipment, CategoryLogistics, CategoryOther}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryProduction, CategoryEquipment, CategoryLogistics, CategoryOther:
		return true
	}
	return false
}

const (
	DefaultProfitPercent = 20
	DefaultBVPercent     = 10
	DefaultTaxPercent    = 10
	DefaultValidityDays  = 7
	DefaultTitle         = "Novo Projeto"

	defaultPaymentTerms     = "Até 30 dias após a emissão da Nota Fiscal."
	defaultNotices          = "Vídeo: Até 2 rodadas de ajustes incluídas. Após isso, custo adicional por hora técnica.\n\nÁudio: Regravações por alteração de texto terão repasse de custo do locutor."
	defaultDeliveryForecast = "A combinar"
	duplicateSuffix         = " (Cópia)"
)

// DefaultProcessSteps returns the process steps every new quote starts with.
func DefaultProcessSteps() []string {
	return []string{
		"1. Contrato",
		"2. Briefing",
		"3. Roteiro",
		"4. Produção",
		"5. Edição",
		"6. Apresentação",
		"7. Aprovação",
	}
}

var (
	ErrInvalidItem   = errors.New("item requires a description and a valid non-negative cost")
	ErrItemNotFound  = errors.New("item not found")
	ErrPriceOverflow = errors.New("amounts exceed the representable price range")
)

// LineItem is a single cost line of a quote.
type LineItem struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitCost    float64  `json:"unit_cost"`
	Hidden      bool     `json:"hidden"`
}

// Budget is a priced proposal.
type Budget struct {
	ID            string    `json:"id"`
	LeadID        string    `json:"lead_id"`
	OpportunityID string    `json:"opportunity_id,omitempty"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	ValidityDays  int       `json:"validity_days"`
	ValidUntil    time.Time `json:"valid_until"`

	ProfitPercent float64 `json:"profit_percent"`
	BVPercent     float64 `json:"bv_percent"`
	TaxPercent    float64 `json:"tax_percent"`

	TotalCost     float64 `json:"total_cost"`
	SaleValue     float64 `json:"sale_value"`
	AdjustedValue float64 `json:"adjusted_value"`
	// PriceLocked is set by a manual edit of AdjustedValue and cleared only
	// by ResetToComputed.
	PriceLocked bool `json:"price_locked"`

	Closed   bool `json:"closed"`
	Archived bool `json:"archived"`

	Items []LineItem `json:"items"`

	ClientMode       bool     `json:"client_mode"`
	ProcessSteps     []string `json:"process_steps"`
	PaymentTerms     string   `json:"payment_terms"`
	Notices          string   `json:"notices"`
	DeliveryForecast string   `json:"delivery_forecast"`
	PresentationText string   `json:"presentation_text,omitempty"`
	StrategicGoal    string   `json:"strategic_goal,omitempty"`
	DeliverySpecs    string   `json:"delivery_specs,omitempty"`
}

// New returns an empty quote for a lead with the default parameters.
func New(leadID string, now time.Time) *Budget {
	created := truncateDay(now)
	b := &Budget{
		ID:               uuid.NewString(),
		LeadID:           leadID,
		Title:            DefaultTitle,
		CreatedAt:        created,
		ValidityDays:     DefaultValidityDays,
		ValidUntil:       created.AddDate(0, 0, DefaultValidityDays),
		ProfitPercent:    DefaultProfitPercent,
		BVPercent:        DefaultBVPercent,
		TaxPercent:       DefaultTaxPercent,
		Items:            []LineItem{},
		ProcessSteps:     DefaultProcessSteps(),
		PaymentTerms:     defaultPaymentTerms,
		Notices:          defaultNotices,
		DeliveryForecast: defaultDeliveryForecast,
	}
	b.Recalculate()
	return b
}

// Percentages returns the quote's markup parameters.
func (b *Budget) Percentages() pricing.Percentages {
	return pricing.Percentages{
		ProfitPercent: b.ProfitPercent,
		BVPercent:     b.BVPercent,
		TaxPercent:    b.TaxPercent,
	}
}

// Recalculate refreshes TotalCost and SaleValue from the items, and
// AdjustedValue too unless the price is locked.
func (b *Budget) Recalculate() {
	inputs := make([]pricing.ItemInput, 0, len(b.Items))
	for _, item := range b.Items {
		inputs = append(inputs, pricing.ItemInput{
			Quantity: item.Quantity,
			UnitCost: item.UnitCost,
			Hidden:   item.Hidden,
		})
	}

	result := pricing.Calculate(inputs, b.Percentages(), pricing.Previous{
		AdjustedValue: b.AdjustedValue,
		SaleValue:     b.SaleValue,
		Locked:        b.PriceLocked,
	})

	b.TotalCost = result.Breakdown.TotalCost
	b.SaleValue = result.Totals.SaleValue
	b.AdjustedValue = result.Totals.AdjustedValue
}

// Summary returns the derived presentation values for the current price.
func (b *Budget) Summary() pricing.Derived {
	return pricing.Derive(b.TotalCost, b.AdjustedValue, b.Percentages())
}

// ItemDraft carries the raw values typed into the add-item row. In JSON the
// amounts may be sent either as numbers or as strings.
type ItemDraft struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Quantity    string   `json:"quantity"`
	UnitCost    string   `json:"unit_cost"`
}

func (d *ItemDraft) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Quantity    json.RawMessage `json:"quantity"`
		UnitCost    json.RawMessage `json:"unit_cost"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	quantity, err := amountText(raw.Quantity)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	cost, err := amountText(raw.UnitCost)
	if err != nil {
		return fmt.Errorf("unit_cost: %w", err)
	}

	*d = ItemDraft{
		Category:    raw.Category,
		Description: raw.Description,
		Quantity:    quantity,
		UnitCost:    cost,
	}
	return nil
}

// amountText returns a JSON string or number as typed text. Absent and null
// values become empty.
func amountText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// AddItem appends a new item built from draft. The quote is left untouched
// and ErrInvalidItem returned when the description is blank, the cost does
// not parse or the new total would overflow. A missing or zero quantity
// becomes 1.
func (b *Budget) AddItem(draft ItemDraft) (LineItem, error) {
	description := strings.TrimSpace(draft.Description)
	if description == "" || !draft.Category.Valid() {
		return LineItem{}, ErrInvalidItem
	}

	cost, err := parseAmount(draft.UnitCost)
	if err != nil || cost < 0 {
		return LineItem{}, ErrInvalidItem
	}

	quantity, err := parseAmount(draft.Quantity)
	if err != nil || quantity <= 0 {
		quantity = 1
	}

	item := LineItem{
		ID:          uuid.NewString(),
		Category:    draft.Category,
		Description: description,
		Quantity:    quantity,
		UnitCost:    cost,
	}
	err = b.reprice(func(next *Budget) error {
		next.Items = append(next.Items, item)
		return nil
	})
	if err != nil {
		return LineItem{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return item, nil
}

// RemoveItem deletes the item with the given id.
func (b *Budget) RemoveItem(id string) error {
	idx := b.itemIndex(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	b.Items = append(b.Items[:idx], b.Items[idx+1:]...)
	b.Recalculate()
	return nil
}

// ItemPatch lists the fields to change on an existing item; nil fields are
// left as they are.
type ItemPatch struct {
	Category    *Category `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	Quantity    *float64  `json:"quantity,omitempty"`
	UnitCost    *float64  `json:"unit_cost,omitempty"`
	Hidden      *bool     `json:"hidden,omitempty"`
}

// UpdateItem applies patch to the item with the given id. Descriptions are
// stored trimmed. On error the quote is unchanged.
func (b *Budget) UpdateItem(id string, patch ItemPatch) error {
	idx := b.itemIndex(id)
	if idx < 0 {
		return ErrItemNotFound
	}

	item := b.Items[idx]
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return ErrInvalidItem
		}
		item.Category = *patch.Category
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return ErrInvalidItem
		}
		item.Quantity = orZero(*patch.Quantity)
	}
	if patch.UnitCost != nil {
		if *patch.UnitCost < 0 {
			return ErrInvalidItem
		}
		item.UnitCost = orZero(*patch.UnitCost)
	}
	if patch.Hidden != nil {
		item.Hidden = *patch.Hidden
	}

	err := b.reprice(func(next *Budget) error {
		next.Items[idx] = item
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return nil
}

// ToggleHidden flips the hidden flag of an item.
func (b *Budget) ToggleHidden(id string) error {
	idx := b.itemIndex(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	hidden := !b.Items[idx].Hidden
	return b.UpdateItem(id, ItemPatch{Hidden: &hidden})
}

// SetPercentages replaces the markup parameters and reprices the quote.
func (b *Budget) SetPercentages(p pricing.Percentages) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return b.reprice(func(next *Budget) error {
		next.ProfitPercent = p.ProfitPercent
		next.BVPercent = p.BVPercent
		next.TaxPercent = p.TaxPercent
		return nil
	})
}

// SetAdjustedValue records a manual price while it is being typed: both the
// adjusted and nominal values follow it and the price becomes locked.
func (b *Budget) SetAdjustedValue(v float64) {
	v = orZero(v)
	b.AdjustedValue = v
	b.SaleValue = v
	b.PriceLocked = true
}

// CommitAdjustedValue rounds a manually typed price to cents.
func (b *Budget) CommitAdjustedValue() {
	b.AdjustedValue = pricing.Round2(b.AdjustedValue)
	b.SaleValue = pricing.Round2(b.SaleValue)
}

// ResetToComputed drops a manual price and returns to the computed one.
func (b *Budget) ResetToComputed() {
	b.PriceLocked = false
	b.Recalculate()
}

// Archive hides the quote from the primary views.
func (b *Budget) Archive() { b.Archived = true }

// Restore brings an archived quote back.
func (b *Budget) Restore() { b.Archived = false }

// Duplicate copies the quote under a new id with fresh dates. Items get new
// ids; pricing, including any manual price, is carried over.
func (b *Budget) Duplicate(now time.Time) *Budget {
	dup := *b
	dup.ID = uuid.NewString()
	dup.Title = b.Title + duplicateSuffix
	dup.CreatedAt = truncateDay(now)
	dup.ValidUntil = dup.CreatedAt.AddDate(0, 0, dup.validityDays())
	dup.Closed = false
	dup.Archived = false

	dup.Items = make([]LineItem, len(b.Items))
	for i, item := range b.Items {
		item.ID = uuid.NewString()
		dup.Items[i] = item
	}
	dup.ProcessSteps = append([]string(nil), b.ProcessSteps...)
	return &dup
}

// Validate checks the invariants a quote must satisfy before it is stored.
func (b *Budget) Validate() error {
	if b.ID == "" {
		return errors.New("budget id is required")
	}
	if err := b.Percentages().Validate(); err != nil {
		return err
	}
	if !b.finiteTotals() {
		return ErrPriceOverflow
	}

	seen := make(map[string]struct{}, len(b.Items))
	for i, item := range b.Items {
		if item.ID == "" {
			return fmt.Errorf("item %d: id is required", i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("item %d: duplicate id %s", i, item.ID)
		}
		seen[item.ID] = struct{}{}
		if !item.Category.Valid() {
			return fmt.Errorf("item %d: invalid category %q", i, item.Category)
		}
		if item.Quantity < 0 || item.UnitCost < 0 {
			return fmt.Errorf("item %d: %w", i, ErrInvalidItem)
		}
	}
	return nil
}

// reprice applies fn to a copy of the quote and recalculates it. The copy
// replaces b only when every stored amount is still finite.
func (b *Budget) reprice(fn func(next *Budget) error) error {
	next := *b
	next.Items = append(make([]LineItem, 0, len(b.Items)+1), b.Items...)
	if err := fn(&next); err != nil {
		return err
	}
	next.Recalculate()
	if !next.finiteTotals() {
		return ErrPriceOverflow
	}
	*b = next
	return nil
}

func (b *Budget) finiteTotals() bool {
	for _, v := range []float64{b.TotalCost, b.SaleValue, b.AdjustedValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (b *Budget) itemIndex(id string) int {
	for i := range b.Items {
		if b.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Budget) validityDays() int {
	if b.ValidityDays <= 0 {
		return DefaultValidityDays
	}
	return b.ValidityDays
}

func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty amount")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("amount must be finite")
	}
	return v, nil
}

func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
