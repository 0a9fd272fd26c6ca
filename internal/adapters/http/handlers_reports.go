package httpadapter

import (
	"net/http"
	"strings"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

func (rt *Router) generateReport(w http.ResponseWriter, r *http.Request) {
	var in domain.ReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.services.Reports.Generate(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	filter := domain.ReportFilter{
		Type: domain.ReportType(strings.TrimSpace(r.URL.Query().Get("type"))),
	}
	var err error
	if filter.Skip, err = queryInt(r, "skip", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.ProjectID, err = queryInt64Ptr(r, "project_id"); err != nil {
		writeError(w, r, err)
		return
	}

	reports, err := rt.services.Reports.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.services.Reports.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) deleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.services.Reports.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{ID: id, Deleted: true})
}

func (rt *Router) downloadReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	artifact, err := rt.services.Reports.Download(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}
