package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const multipartMemory = 32 << 20

var uploadExtensions = map[domain.Operation][]string{
	domain.OperationPDF:   {".pdf"},
	domain.OperationExcel: {".xlsx", ".xlsm", ".xltx", ".xltm"},
}

func (rt *Router) extractPDF(w http.ResponseWriter, r *http.Request) {
	rt.extract(w, r, domain.OperationPDF)
}

func (rt *Router) extractExcel(w http.ResponseWriter, r *http.Request) {
	rt.extract(w, r, domain.OperationExcel)
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request, op domain.Operation) {
	file, header, err := rt.openUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	if err := checkExtension(header.Filename, op); err != nil {
		writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrValidation, "read upload", err))
		return
	}

	var result *domain.ExtractionResult
	switch op {
	case domain.OperationPDF:
		result, err = rt.services.Extraction.ExtractPDF(r.Context(), header.Filename, data)
	default:
		result, err = rt.services.Extraction.ExtractExcel(r.Context(), header.Filename, data)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// submitJob queues an upload for the worker. The operation comes from the
// "operation" form field or, when absent, from the file extension.
func (rt *Router) submitJob(w http.ResponseWriter, r *http.Request) {
	if rt.services.Jobs == nil {
		writeError(w, r, domain.WrapError(domain.ErrServer, "submit job", errors.New("asynchronous extraction is disabled")))
		return
	}
	file, header, err := rt.openUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	op := domain.Operation(strings.ToLower(strings.TrimSpace(r.FormValue("operation"))))
	if op == "" {
		op = operationForFilename(header.Filename)
	}
	if err := checkExtension(header.Filename, op); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := rt.services.Jobs.Submit(r.Context(), header.Filename, op, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	if rt.services.Jobs == nil {
		writeError(w, r, domain.WrapError(domain.ErrServer, "get job", errors.New("asynchronous extraction is disabled")))
		return
	}
	job, err := rt.services.Jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxBytes := int64(rt.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, domain.WrapError(domain.ErrValidation, "read upload", fmt.Errorf("file exceeds %d MB", maxBytes>>20))
		}
		return nil, nil, domain.WrapError(domain.ErrValidation, "read upload", errors.New("multipart form with field 'file' is required"))
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrValidation, "read upload", errors.New("multipart field 'file' is required"))
	}
	return file, header, nil
}

func checkExtension(filename string, op domain.Operation) error {
	allowed, ok := uploadExtensions[op]
	if !ok {
		return domain.WrapError(domain.ErrValidation, "check upload", fmt.Errorf("unsupported operation %q", op))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowed, ext) {
		return domain.WrapError(domain.ErrValidation, "check upload",
			fmt.Errorf("file %q must have one of the extensions %s", filename, strings.Join(allowed, ", ")))
	}
	return nil
}

func operationForFilename(filename string) domain.Operation {
	ext := strings.ToLower(filepath.Ext(filename))
	for op, allowed := range uploadExtensions {
		if slices.Contains(allowed, ext) {
			return op
		}
	}
	return ""
}
