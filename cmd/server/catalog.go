package main

import (
	"net/http"
	"strings"

	"github.com/Simplici0/budgets/internal/budget"
)

func (s *server) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.budgets.Catalog(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleCatalogSuggestions(w http.ResponseWriter, r *http.Request) {
	partial := strings.TrimSpace(r.URL.Query().Get("q"))
	category := budget.Category(strings.TrimSpace(r.URL.Query().Get("category")))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "category must be one of "+categoryList())
		return
	}

	entries, err := s.budgets.Suggest(r.Context(), partial, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func categoryList() string {
	names := make([]string, 0, len(budget.Categories()))
	for _, c := range budget.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
