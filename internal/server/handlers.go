package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/quizqti/core/qti"
	"github.com/FocuswithJustin/quizqti/internal/convert"
	"github.com/FocuswithJustin/quizqti/internal/validation"
)

// Version is reported by /healthz; the CLI sets it at startup.
var Version = "dev"

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Clients int    `json:"websocket_clients"`
}

// ArchiveInfo is the /check response for an uploaded package.
type ArchiveInfo struct {
	AssessmentID   string  `json:"assessment_id"`
	Title          string  `json:"title"`
	Questions      int     `json:"questions"`
	Groups         int     `json:"groups"`
	Images         int     `json:"images"`
	PointsPossible float64 `json:"points_possible"`
}

func archiveInfo(s *qti.Summary) ArchiveInfo {
	return ArchiveInfo{
		AssessmentID:   s.AssessmentID,
		Title:          s.Title,
		Questions:      s.Questions(),
		Groups:         len(s.Groups),
		Images:         len(s.Images),
		PointsPossible: s.PointsPossible(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Clients: s.clients.load(),
	})
}

// readBody reads a size-limited upload and sniffs its type. On failure the
// error response has been written.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, validation.FileType, bool) {
	if !ValidateContentType(r.Header.Get("Content-Type"), AllowedUploadContentTypes) {
		respondError(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			"Send quiz text as text/plain or text/markdown")
		return nil, "", false
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, "", false
		}
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body")
		return nil, "", false
	}
	if len(data) == 0 {
		respondError(w, r, http.StatusBadRequest, "EMPTY_BODY", "Request body is empty")
		return nil, "", false
	}
	ft := validation.DetectFileType(data)
	if ft == validation.FileTypeText && !validation.IsQuizText(data) {
		ft = validation.FileTypeUnknown
	}
	return data, ft, true
}

// readQuiz is readBody for endpoints that only take quiz text.
func (s *Server) readQuiz(w http.ResponseWriter, r *http.Request) (string, bool) {
	data, ft, ok := s.readBody(w, r)
	if !ok {
		return "", false
	}
	if ft != validation.FileTypeText {
		respondError(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			fmt.Sprintf("Expected UTF-8 quiz text, got %s content", ft))
		return "", false
	}
	return string(data), true
}

// options applies the query parameters of r to the server options.
// "name" labels the document in diagnostics and "seed" fixes the
// solutions draw.
func (s *Server) options(w http.ResponseWriter, r *http.Request) (convert.Options, bool) {
	opts := s.cfg.Convert
	opts.Source = "<string>"
	q := r.URL.Query()
	if name := q.Get("name"); name != "" {
		if err := validation.ValidateName(name); err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_NAME", err.Error())
			return opts, false
		}
		opts.Source = strconv.Quote(name)
	}
	if seed := q.Get("seed"); seed != "" {
		n, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_SEED", "seed must be a non-negative integer")
			return opts, false
		}
		opts.Seed = &n
	}
	return opts, true
}

func (s *Server) compile(w http.ResponseWriter, r *http.Request) (*convert.Result, convert.Options, bool) {
	opts, ok := s.options(w, r)
	if !ok {
		return nil, opts, false
	}
	text, ok := s.readQuiz(w, r)
	if !ok {
		return nil, opts, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := s.conv.Compile(ctx, text, opts)
	if err != nil {
		respondDiagnostic(w, r, err)
		return nil, opts, false
	}
	return res, opts, true
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.compile(w, r)
	if !ok {
		return
	}
	data, err := res.Package.Bytes()
	if err != nil {
		respondDiagnostic(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, res.Package.IDs.Assessment))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	data, ft, ok := s.readBody(w, r)
	if !ok {
		return
	}
	switch ft {
	case validation.FileTypeZip:
		sum, err := qti.ReadArchive(data)
		if err != nil {
			respondDiagnostic(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, archiveInfo(sum))
	case validation.FileTypeText:
		sum, err := s.check(r.Context(), string(data), opts)
		if err != nil {
			respondDiagnostic(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, sum)
	default:
		respondError(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			fmt.Sprintf("Expected quiz text or a zip package, got %s content", ft))
	}
}

// check parses text and summarizes it.
func (s *Server) check(ctx context.Context, text string, opts convert.Options) (convert.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	q, err := s.conv.Parse(ctx, text, opts)
	if err != nil {
		return convert.Summary{}, err
	}
	return convert.Summarize(q), nil
}

// handleSolutions returns the answer key as Pandoc Markdown, or as a
// standalone HTML page with format=html.
func (s *Server) handleSolutions(w http.ResponseWriter, r *http.Request) {
	format := convert.SolutionsFormat(r.URL.Query().Get("format"))
	contentType := "text/markdown; charset=utf-8"
	switch format {
	case "", convert.FormatMarkdown:
		format = convert.FormatMarkdown
	case convert.FormatHTML:
		contentType = "text/html; charset=utf-8"
	default:
		respondError(w, r, http.StatusBadRequest, "INVALID_FORMAT", "format must be md or html")
		return
	}
	res, opts, ok := s.compile(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	data, err := s.conv.Solutions(ctx, res, format, opts)
	if err != nil {
		respondDiagnostic(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
