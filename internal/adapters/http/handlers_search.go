package httpadapter

import (
	"net/http"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

func (rt *Router) searchSimple(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.SearchRequest{
		Query:            q.Get("q"),
		Language:         q.Get("lang"),
		FilterDepartment: q.Get("department"),
	}
	var err error
	if req.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PriceMin, err = queryFloatPtr(r, "price_min"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PriceMax, err = queryFloatPtr(r, "price_max"); err != nil {
		writeError(w, r, err)
		return
	}
	rt.runSearch(w, r, req)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt.runSearch(w, r, req)
}

func (rt *Router) runSearch(w http.ResponseWriter, r *http.Request, req domain.SearchRequest) {
	resp, err := rt.services.Search.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getWorkItem(w http.ResponseWriter, r *http.Request) {
	item, err := rt.services.Search.GetByRateCode(r.Context(), r.URL.Query().Get("lang"), r.PathValue("rate_code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (rt *Router) collections(w http.ResponseWriter, r *http.Request) {
	infos, err := rt.services.Search.Collections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": infos})
}
