package budget

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Simplici0/budgets/internal/pricing"
)

var testNow = time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func mustAdd(t *testing.T, b *Budget, draft ItemDraft) LineItem {
	t.Helper()
	item, err := b.AddItem(draft)
	if err != nil {
		t.Fatalf("AddItem(%+v): %v", draft, err)
	}
	return item
}

func TestNew_UsesDefaults(t *testing.T) {
	b := New("lead-1", testNow)

	if b.ID == "" {
		t.Fatalf("expected generated id")
	}
	if b.ProfitPercent != 20 || b.BVPercent != 10 || b.TaxPercent != 10 {
		t.Fatalf("unexpected default percentages: %+v", b.Percentages())
	}
	if !b.CreatedAt.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created date %v", b.CreatedAt)
	}
	if !b.ValidUntil.Equal(time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected validity %v", b.ValidUntil)
	}
	if len(b.ProcessSteps) != 7 || b.ProcessSteps[0] != "1. Contrato" {
		t.Fatalf("unexpected process steps %v", b.ProcessSteps)
	}
	if b.TotalCost != 0 || b.SaleValue != 0 || b.AdjustedValue != 0 {
		t.Fatalf("expected zero totals on empty budget: %+v", b)
	}
}

func TestAddItem_SyncsNewBudget(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Diária de câmera", Quantity: "1", UnitCost: "100"})

	nearlyEqual(t, "totalCost", b.TotalCost, 100)
	nearlyEqual(t, "saleValue", b.SaleValue, 143)
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 143)
}

func TestManualOverrideSurvivesNewItems(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Diária de câmera", UnitCost: "100"})

	b.SetAdjustedValue(150)
	b.CommitAdjustedValue()
	if !b.PriceLocked {
		t.Fatalf("expected manual edit to lock the price")
	}

	mustAdd(t, b, ItemDraft{Category: CategoryLogistics, Description: "Transporte", Quantity: "1", UnitCost: "50"})

	nearlyEqual(t, "totalCost", b.TotalCost, 150)
	nearlyEqual(t, "saleValue", b.SaleValue, 214.5)
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 150)
}

func TestManualOverrideMatchingComputedPriceStaysLocked(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Roteiro", UnitCost: "100"})

	b.SetAdjustedValue(143.4)
	mustAdd(t, b, ItemDraft{Category: CategoryOther, Description: "Alimentação", UnitCost: "10"})

	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 143.4)
}

func TestSetAdjustedValue_SyncsWhileTypingAndRoundsOnCommit(t *testing.T) {
	b := New("lead-1", testNow)
	b.SetAdjustedValue(199.999)

	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 199.999)
	nearlyEqual(t, "saleValue", b.SaleValue, 199.999)

	b.CommitAdjustedValue()
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 200)
	nearlyEqual(t, "saleValue", b.SaleValue, 200)
}

func TestResetToComputed(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Edição", UnitCost: "100"})
	b.SetAdjustedValue(500)

	b.ResetToComputed()

	if b.PriceLocked {
		t.Fatalf("expected lock to be cleared")
	}
	nearlyEqual(t, "saleValue", b.SaleValue, 143)
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 143)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft ItemDraft
	}{
		{"blank description", ItemDraft{Category: CategoryOther, Description: "  ", UnitCost: "10"}},
		{"missing cost", ItemDraft{Category: CategoryOther, Description: "Drone"}},
		{"unparsable cost", ItemDraft{Category: CategoryOther, Description: "Drone", UnitCost: "abc"}},
		{"negative cost", ItemDraft{Category: CategoryOther, Description: "Drone", UnitCost: "-1"}},
		{"unknown category", ItemDraft{Category: "Marketing", Description: "Drone", UnitCost: "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("lead-1", testNow)
			if _, err := b.AddItem(tt.draft); !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("expected ErrInvalidItem, got %v", err)
			}
			if len(b.Items) != 0 || b.TotalCost != 0 {
				t.Fatalf("expected budget to be unchanged: %+v", b)
			}
		})
	}
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	for _, qty := range []string{"", "0", "abc"} {
		b := New("lead-1", testNow)
		item := mustAdd(t, b, ItemDraft{Category: CategoryEquipment, Description: "Lente", Quantity: qty, UnitCost: "80"})
		if item.Quantity != 1 {
			t.Fatalf("quantity %q: got %v, want 1", qty, item.Quantity)
		}
	}
}

func TestAddItem_AcceptsFractionalQuantity(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Hora técnica", Quantity: "2.5", UnitCost: "40"})

	nearlyEqual(t, "totalCost", b.TotalCost, 100)
}

func TestHiddenItemsDoNotCount(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Câmera", UnitCost: "100"})
	hidden := mustAdd(t, b, ItemDraft{Category: CategoryEquipment, Description: "Grua", UnitCost: "900"})

	if err := b.ToggleHidden(hidden.ID); err != nil {
		t.Fatalf("ToggleHidden: %v", err)
	}

	nearlyEqual(t, "totalCost", b.TotalCost, 100)
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 143)
	if len(b.Items) != 2 {
		t.Fatalf("hidden item must remain stored, got %d items", len(b.Items))
	}

	cost := 1000.0
	if err := b.UpdateItem(hidden.ID, ItemPatch{UnitCost: &cost}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	nearlyEqual(t, "totalCost after editing hidden item", b.TotalCost, 100)
}

func TestUpdateItem(t *testing.T) {
	b := New("lead-1", testNow)
	item := mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Locução", UnitCost: "100"})

	qty := 3.0
	category := CategoryOther
	if err := b.UpdateItem(item.ID, ItemPatch{Quantity: &qty, Category: &category}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	nearlyEqual(t, "totalCost", b.TotalCost, 300)
	if b.Items[0].Category != CategoryOther {
		t.Fatalf("category not updated: %+v", b.Items[0])
	}

	negative := -1.0
	if err := b.UpdateItem(item.ID, ItemPatch{UnitCost: &negative}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
	if err := b.UpdateItem("missing", ItemPatch{Quantity: &qty}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestUpdateItem_TrimsDescription(t *testing.T) {
	b := New("lead-1", testNow)
	item := mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Locução", UnitCost: "100"})

	description := "  Locução em off  "
	if err := b.UpdateItem(item.ID, ItemPatch{Description: &description}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got := b.Items[0].Description; got != "Locução em off" {
		t.Fatalf("description = %q, want %q", got, "Locução em off")
	}
}

func TestRemoveItem(t *testing.T) {
	b := New("lead-1", testNow)
	first := mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "A", UnitCost: "100"})
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "B", UnitCost: "50"})

	if err := b.RemoveItem(first.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	nearlyEqual(t, "totalCost", b.TotalCost, 50)
	if len(b.Items) != 1 || b.Items[0].Description != "B" {
		t.Fatalf("unexpected items %+v", b.Items)
	}
	if err := b.RemoveItem(first.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSetPercentages(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "A", UnitCost: "100"})

	if err := b.SetPercentages(pricing.Percentages{ProfitPercent: 50, BVPercent: 0, TaxPercent: 0}); err != nil {
		t.Fatalf("SetPercentages: %v", err)
	}
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 150)

	err := b.SetPercentages(pricing.Percentages{TaxPercent: -100})
	if !errors.Is(err, pricing.ErrDegenerateTax) {
		t.Fatalf("expected ErrDegenerateTax, got %v", err)
	}
	if b.TaxPercent != 0 || b.ProfitPercent != 50 {
		t.Fatalf("percentages changed after rejected update: %+v", b.Percentages())
	}
}

func TestRecalculate_IsIdempotent(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "A", Quantity: "3", UnitCost: "33.33"})
	before := *b

	b.Recalculate()
	b.Recalculate()

	if b.TotalCost != before.TotalCost || b.SaleValue != before.SaleValue || b.AdjustedValue != before.AdjustedValue {
		t.Fatalf("recalculation changed totals: before=%+v after=%+v", before, b)
	}
}

func TestDuplicate(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "A", UnitCost: "100"})
	b.Closed = true
	b.Archive()

	later := testNow.AddDate(0, 1, 0)
	dup := b.Duplicate(later)

	if dup.ID == b.ID {
		t.Fatalf("duplicate must get a new id")
	}
	if dup.Items[0].ID == b.Items[0].ID {
		t.Fatalf("duplicate items must get new ids")
	}
	if dup.Title != "Novo Projeto (Cópia)" {
		t.Fatalf("unexpected title %q", dup.Title)
	}
	if dup.Closed || dup.Archived {
		t.Fatalf("duplicate must be open and active: %+v", dup)
	}
	if !dup.ValidUntil.Equal(dup.CreatedAt.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected validity %v", dup.ValidUntil)
	}
	nearlyEqual(t, "adjustedValue", dup.AdjustedValue, b.AdjustedValue)

	dup.Items[0].Description = "changed"
	if b.Items[0].Description != "A" {
		t.Fatalf("duplicate shares item storage with original")
	}
}

func TestValidate(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "A", UnitCost: "100"})
	if err := b.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	b.Items = append(b.Items, b.Items[0])
	if err := b.Validate(); err == nil {
		t.Fatalf("expected duplicate item id to be rejected")
	}

	b.Items = b.Items[:1]
	b.Items[0].Category = "Marketing"
	if err := b.Validate(); err == nil {
		t.Fatalf("expected invalid category to be rejected")
	}
}

func TestAddItem_RejectsOverflowingTotal(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Câmera", UnitCost: "100"})

	_, err := b.AddItem(ItemDraft{Category: CategoryProduction, Description: "Overflow", Quantity: "1e308", UnitCost: "1e10"})
	if !errors.Is(err, ErrInvalidItem) || !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected ErrInvalidItem wrapping ErrPriceOverflow, got %v", err)
	}
	if len(b.Items) != 1 {
		t.Fatalf("expected budget to be unchanged, got %d items", len(b.Items))
	}
	nearlyEqual(t, "totalCost", b.TotalCost, 100)
	nearlyEqual(t, "adjustedValue", b.AdjustedValue, 143)
}

func TestUpdateItem_RejectsOverflowingTotal(t *testing.T) {
	b := New("lead-1", testNow)
	item := mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Câmera", UnitCost: "1e10"})

	qty := 1e308
	if err := b.UpdateItem(item.ID, ItemPatch{Quantity: &qty}); !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected ErrPriceOverflow, got %v", err)
	}
	if b.Items[0].Quantity != 1 {
		t.Fatalf("expected item to be unchanged: %+v", b.Items[0])
	}
	nearlyEqual(t, "totalCost", b.TotalCost, 1e10)
}

func TestSetPercentages_RejectsOverflowingPrice(t *testing.T) {
	b := New("lead-1", testNow)
	mustAdd(t, b, ItemDraft{Category: CategoryProduction, Description: "Câmera", UnitCost: "1e300"})
	before := b.AdjustedValue

	err := b.SetPercentages(pricing.Percentages{ProfitPercent: 1e10, BVPercent: 10, TaxPercent: 10})
	if !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected ErrPriceOverflow, got %v", err)
	}
	if b.ProfitPercent != DefaultProfitPercent || b.AdjustedValue != before {
		t.Fatalf("expected budget to be unchanged: %+v", b)
	}
}

func TestValidate_RejectsNonFiniteTotals(t *testing.T) {
	b := New("lead-1", testNow)
	b.TotalCost = math.Inf(1)
	if err := b.Validate(); !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected ErrPriceOverflow, got %v", err)
	}
}

func TestItemDraft_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantQty  string
		wantCost string
		wantErr  bool
	}{
		{"strings", `{"quantity":"2","unit_cost":"100.5"}`, "2", "100.5", false},
		{"numbers", `{"quantity":2,"unit_cost":100.5}`, "2", "100.5", false},
		{"absent and null", `{"unit_cost":null}`, "", "", false},
		{"unparsable text is kept", `{"unit_cost":"abc"}`, "", "abc", false},
		{"wrong type", `{"unit_cost":true}`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var draft ItemDraft
			err := json.Unmarshal([]byte(tt.body), &draft)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if draft.Quantity != tt.wantQty || draft.UnitCost != tt.wantCost {
				t.Fatalf("got quantity %q cost %q, want %q %q", draft.Quantity, draft.UnitCost, tt.wantQty, tt.wantCost)
			}
		})
	}
}
