package httpadapter

import (
	"math"
	"net/http"
	"strconv"

	"github.com/inimene84/cad2data-pipeline/internal/config"
	"github.com/inimene84/cad2data-pipeline/internal/core/ports"
	"github.com/inimene84/cad2data-pipeline/internal/observability/metrics"
)

const serviceName = "api"

// Services groups the inbound ports the router serves.
type Services struct {
	Extraction ports.ExtractionService
	Jobs       ports.JobService
	Search     ports.SearchService
	Reports    ports.ReportService
	Records    ports.RecordService
	Settings   ports.SettingsReader
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /extraction/pdf", rt.extractPDF)
	mux.HandleFunc("POST /extraction/excel", rt.extractExcel)
	mux.HandleFunc("POST /extraction/jobs", rt.submitJob)
	mux.HandleFunc("GET /extraction/jobs/{id}", rt.getJob)

	mux.HandleFunc("GET /materials", rt.listMaterials)
	mux.HandleFunc("POST /materials", rt.createMaterial)
	mux.HandleFunc("GET /materials/summary", rt.materialSummary)
	mux.HandleFunc("GET /materials/search", rt.searchMaterials)
	mux.HandleFunc("GET /materials/{id}", rt.getMaterial)
	mux.HandleFunc("PATCH /materials/{id}", rt.updateMaterial)
	mux.HandleFunc("DELETE /materials/{id}", rt.deleteMaterial)

	mux.HandleFunc("GET /projects", rt.listProjects)
	mux.HandleFunc("POST /projects", rt.createProject)
	mux.HandleFunc("GET /projects/stats", rt.projectStats)
	mux.HandleFunc("GET /projects/{id}", rt.getProject)
	mux.HandleFunc("PATCH /projects/{id}", rt.updateProject)
	mux.HandleFunc("DELETE /projects/{id}", rt.deleteProject)

	mux.HandleFunc("POST /reports/generate", rt.generateReport)
	mux.HandleFunc("GET /reports", rt.listReports)
	mux.HandleFunc("GET /reports/{id}", rt.getReport)
	mux.HandleFunc("DELETE /reports/{id}", rt.deleteReport)
	mux.HandleFunc("GET /reports/{id}/download", rt.downloadReport)

	mux.HandleFunc("GET /vector/search/simple", rt.searchSimple)
	mux.HandleFunc("POST /vector/search", rt.search)
	mux.HandleFunc("GET /vector/item/{rate_code}", rt.getWorkItem)
	mux.HandleFunc("GET /vector/collections", rt.collections)

	mux.HandleFunc("GET /v1/settings/vat", rt.vatSettings)
	mux.HandleFunc("GET /v1/settings/regions", rt.regionSettings)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = corsMiddleware(handler, rt.cfg.AllowedOrigins)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) vatSettings(w http.ResponseWriter, _ *http.Request) {
	s := rt.services.Settings
	pct := math.Round(s.VATRate()*10000) / 100
	writeJSON(w, http.StatusOK, map[string]any{
		"vat_rate":       s.VATRate(),
		"vat_percentage": pct,
		"vat_country":    s.VATCountry(),
		"vat_label":      vatLabel(pct),
		"currency":       "EUR",
	})
}

// vatLabel renders the rate the way Estonian invoices print it ("KM 24%").
func vatLabel(pct float64) string {
	return "KM " + strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

func (rt *Router) regionSettings(w http.ResponseWriter, _ *http.Request) {
	s := rt.services.Settings
	writeJSON(w, http.StatusOK, map[string]any{
		"default_region": s.DefaultRegion(),
		"regions":        s.Regions(),
	})
}
