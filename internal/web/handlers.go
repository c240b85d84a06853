package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/manifestcheck/internal/core"
	"github.com/JonMunkholm/manifestcheck/internal/logging"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/report"
	"github.com/JonMunkholm/manifestcheck/internal/web/views"
)

// multipartMemory is how much of a form is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// CorrectResponse is the JSON form of a regenerated document. Binary
// formats are base64 encoded.
type CorrectResponse struct {
	Content           string          `json:"content"`
	Encoding          string          `json:"encoding,omitempty"`
	MimeType          string          `json:"mimeType"`
	FileName          string          `json:"fileName"`
	Format            manifest.Format `json:"format"`
	IssuesFixed       int             `json:"issuesFixed"`
	DuplicatesRemoved int             `json:"duplicatesRemoved"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"status":  "ok",
		"limiter": s.service.LimiterStatus(),
	})
}

// handleAnalyze returns the compliance report for an uploaded document.
// Query flags: persist, narrative.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rep, err := s.analyze(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, rep)
}

// handleAnalyzePage is handleAnalyze rendered as HTML.
func (s *Server) handleAnalyzePage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.analyze(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ReportPage(rep).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*report.Report, error) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		return nil, err
	}
	opts := core.AnalyzeOptions{
		Persist:   boolParam(r, "persist"),
		Narrative: boolParam(r, "narrative"),
	}
	return s.service.Analyze(WithRequestMetadata(r.Context(), r), name, data, opts)
}

// handleCorrect regenerates an uploaded document. With download=true the
// file itself is returned instead of a JSON envelope.
func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format := r.FormValue("format")
	out, err := s.service.Correct(WithRequestMetadata(r.Context(), r), name, data, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if boolParam(r, "download") {
		w.Header().Set("Content-Type", out.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Content)))
		_, _ = w.Write(out.Content)
		return
	}

	resp := CorrectResponse{
		Content:           string(out.Content),
		MimeType:          out.MimeType,
		FileName:          out.FileName,
		Format:            out.Format,
		IssuesFixed:       out.IssuesFixed,
		DuplicatesRemoved: out.DuplicatesRemoved,
	}
	if out.Format == manifest.FormatPDF {
		resp.Content = base64.StdEncoding.EncodeToString(out.Content)
		resp.Encoding = "base64"
	}
	writeJSON(w, r, resp)
}

// handleFix runs a fix session for one JSON record.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var req core.FixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}

	result, err := s.service.Fix(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, result)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.service.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, rep)
}

// readUpload reads the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, core.ErrFileTooLarge
		}
		return "", nil, fmt.Errorf("%w: %w", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, core.ErrNoFile
	}
	defer file.Close()

	if maxSize > 0 && header.Size > maxSize {
		return "", nil, fmt.Errorf("%w: %d bytes", core.ErrFileTooLarge, header.Size)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return header.Filename, data, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.FormValue(name))
	return v
}

// clientIP returns the request address without its port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeJSON encodes v. Encoding errors are logged since headers are sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
