package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/pricing"
	"github.com/Simplici0/budgets/internal/service"
	"github.com/Simplici0/budgets/internal/storage"
)

type createBudgetRequest struct {
	LeadID string `json:"lead_id"`
}

type percentagesRequest struct {
	ProfitPercent float64 `json:"profit_percent"`
	BVPercent     float64 `json:"bv_percent"`
	TaxPercent    float64 `json:"tax_percent"`
}

type adjustedRequest struct {
	AdjustedValue *float64 `json:"adjusted_value"`
}

// saveResponse is returned by full saves. CatalogError is set when the
// budget was stored but catalog learning failed for some items.
type saveResponse struct {
	Budget       *budget.Budget `json:"budget"`
	CatalogError string         `json:"catalog_error,omitempty"`
}

type summaryResponse struct {
	TotalCost     float64 `json:"total_cost"`
	SaleValue     float64 `json:"sale_value"`
	AdjustedValue float64 `json:"adjusted_value"`
	PriceLocked   bool    `json:"price_locked"`
	NetBeforeTax  float64 `json:"net_before_tax"`
	RealProfit    float64 `json:"real_profit"`
	Commission    float64 `json:"commission"`
	Tax           float64 `json:"tax"`
}

func (s *server) handleBudgetsList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	budgets, err := s.budgets.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *server) handleBudgetCreate(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	b, err := s.budgets.Create(r.Context(), strings.TrimSpace(req.LeadID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *server) handleBudgetGet(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleBudgetSave(w http.ResponseWriter, r *http.Request) {
	var b budget.Budget
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.ID = chi.URLParam(r, "id")
	if b.CreatedAt.IsZero() {
		writeError(w, http.StatusBadRequest, "created_at is required")
		return
	}
	if b.Items == nil {
		b.Items = []budget.LineItem{}
	}

	s.respondSaved(w, r, http.StatusOK, &b, s.budgets.Save(r.Context(), &b))
}

func (s *server) handleBudgetDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d := b.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalCost:     b.TotalCost,
		SaleValue:     b.SaleValue,
		AdjustedValue: b.AdjustedValue,
		PriceLocked:   b.PriceLocked,
		NetBeforeTax:  pricing.Round2(d.NetBeforeTax),
		RealProfit:    pricing.Round2(d.RealProfit),
		Commission:    pricing.Round2(d.Commission),
		Tax:           pricing.Round2(d.Tax),
	})
}

func (s *server) handleItemAdd(w http.ResponseWriter, r *http.Request) {
	var draft budget.ItemDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mutate(w, r, http.StatusCreated, func(b *budget.Budget) error {
		_, err := b.AddItem(draft)
		return err
	})
}

func (s *server) handleItemUpdate(w http.ResponseWriter, r *http.Request) {
	var patch budget.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	itemID := chi.URLParam(r, "itemID")
	s.mutate(w, r, http.StatusOK, func(b *budget.Budget) error {
		return b.UpdateItem(itemID, patch)
	})
}

func (s *server) handleItemRemove(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	s.mutate(w, r, http.StatusOK, func(b *budget.Budget) error {
		return b.RemoveItem(itemID)
	})
}

func (s *server) handlePercentagesSet(w http.ResponseWriter, r *http.Request) {
	var req percentagesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mutate(w, r, http.StatusOK, func(b *budget.Budget) error {
		return b.SetPercentages(pricing.Percentages{
			ProfitPercent: req.ProfitPercent,
			BVPercent:     req.BVPercent,
			TaxPercent:    req.TaxPercent,
		})
	})
}

func (s *server) handleAdjustedSet(w http.ResponseWriter, r *http.Request) {
	var req adjustedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AdjustedValue == nil || *req.AdjustedValue < 0 {
		writeError(w, http.StatusBadRequest, "adjusted_value must be a non-negative number")
		return
	}

	s.mutate(w, r, http.StatusOK, func(b *budget.Budget) error {
		b.SetAdjustedValue(*req.AdjustedValue)
		b.CommitAdjustedValue()
		return nil
	})
}

func (s *server) handlePriceReset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, http.StatusOK, func(b *budget.Budget) error {
		b.ResetToComputed()
		return nil
	})
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	b, err := s.budgets.SetArchived(r.Context(), chi.URLParam(r, "id"), archived)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	dup, err := s.budgets.Duplicate(r.Context(), chi.URLParam(r, "id"))
	s.respondSaved(w, r, http.StatusCreated, dup, err)
}

// mutate applies fn to the budget named in the URL and answers with the
// stored draft.
func (s *server) mutate(w http.ResponseWriter, r *http.Request, status int, fn func(*budget.Budget) error) {
	b, err := s.budgets.Update(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, b)
}

// respondSaved answers a full save. A learning failure still means the
// budget was stored, so it is reported next to the budget.
func (s *server) respondSaved(w http.ResponseWriter, r *http.Request, status int, b *budget.Budget, err error) {
	var learnErr *service.LearnError
	switch {
	case err == nil:
		writeJSON(w, status, saveResponse{Budget: b})
	case errors.As(err, &learnErr):
		writeJSON(w, status, saveResponse{Budget: b, CatalogError: learnErr.Error()})
	default:
		s.fail(w, r, err)
	}
}

func parseListFilter(r *http.Request) (storage.ListFilter, error) {
	q := r.URL.Query()
	filter := storage.ListFilter{Query: strings.TrimSpace(q.Get("q"))}

	switch status := q.Get("status"); status {
	case "", string(storage.StatusActive):
		filter.Status = storage.StatusActive
	case string(storage.StatusArchived):
		filter.Status = storage.StatusArchived
	case "all":
		filter.Status = storage.StatusAll
	default:
		return filter, fmt.Errorf("status must be active, archived or all")
	}

	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return filter, fmt.Errorf("year must be a positive integer")
		}
		filter.Year = year
	}

	if raw := q.Get("closed"); raw != "" {
		closed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("closed must be true or false")
		}
		filter.Closed = &closed
	}

	switch sort := q.Get("sort"); sort {
	case "", "recent":
		filter.Sort = storage.SortRecent
	case string(storage.SortOldest), string(storage.SortTitle):
		filter.Sort = storage.Sort(sort)
	default:
		return filter, fmt.Errorf("sort must be recent, oldest or title")
	}

	return filter, nil
}
