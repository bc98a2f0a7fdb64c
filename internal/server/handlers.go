package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/evaluate"
	"github.com/hyperjump/tanya/internal/ingest"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
)

const (
	maxUploadBytes     = 64 << 20
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Store
	resp := map[string]interface{}{
		"entries":    store.Count(),
		"index_path": store.Dir(),
		"model_id":   store.ModelID(),
	}
	size, overlap := s.deps.Pipeline.ChunkParams()
	resp["config"] = map[string]interface{}{
		"chunk_size":          size,
		"chunk_overlap":       overlap,
		"embedding_provider":  s.config.Embedding.Provider,
		"generation_provider": s.config.Generation.Provider,
		"generation_model":    s.config.Generation.Model,
		"documents_dir":       s.config.Storage.DocumentsDir,
	}

	paths := []string{store.Dir()}
	if s.config.Storage.KeywordIndexPath != "" {
		paths = append(paths, s.config.Storage.KeywordIndexPath)
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	if s.deps.Keyword != nil {
		if n, err := s.deps.Keyword.DocCount(); err == nil {
			resp["keyword_entries"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type documentFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	files := []documentFile{}
	dir := s.config.Storage.DocumentsDir
	if dir != "" {
		paths, err := ingest.CollectFiles(dir, false, s.config.Ingest.Extensions)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("list documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, p := range paths {
			f := documentFile{Name: filepath.Base(p), Path: p}
			if info, err := os.Stat(p); err == nil {
				f.Size = info.Size()
			}
			files = append(files, f)
		}
	}

	indexed, err := s.deps.Store.Sources(r.Context())
	if err != nil {
		s.logger.Error("list indexed sources failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if indexed == nil {
		indexed = []*models.SourceSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents_dir": dir,
		"files":         files,
		"indexed":       indexed,
	})
}

type ingestRequest struct {
	Paths []string `json:"paths"`
}

// handleIngestDocuments accepts a multipart upload (field "files"), saving each file into the
// documents directory, or a JSON list of server-side paths. Either way the files are then ingested.
func (s *Server) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	var paths []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		saved, status, err := s.saveUploads(r)
		if err != nil {
			s.respondError(w, status, err.Error())
			return
		}
		paths = saved
	} else {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		paths = req.Paths
	}
	if len(paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files to ingest")
		return
	}

	s.logger.Debug("ingest request", zap.Int("files", len(paths)))
	s.work.Lock()
	result, err := s.deps.Pipeline.Ingest(r.Context(), paths)
	s.work.Unlock()
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) saveUploads(r *http.Request) ([]string, int, error) {
	dir := s.config.Storage.DocumentsDir
	if dir == "" {
		return nil, http.StatusInternalServerError, errors.New("documents directory not configured")
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, http.StatusBadRequest, errors.New("no files uploaded (field \"files\")")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to create documents dir: %w", err)
	}

	paths := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid file name %q", fh.Filename)
		}
		dst := filepath.Join(dir, name)
		if err := saveUpload(fh, dst); err != nil {
			return nil, http.StatusInternalServerError, err
		}
		s.logger.Info("saved upload", zap.String("path", dst), zap.Int64("size", fh.Size))
		paths = append(paths, dst)
	}
	return paths, http.StatusOK, nil
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.work.Lock()
	rec, err := s.deps.Session.Ask(r.Context(), req)
	s.work.Unlock()
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuestion) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.deps.Session.History().Recent(),
	})
}

type evaluateRequest struct {
	QuestionsPath string `json:"questions_path"`
	AnswersPath   string `json:"answers_path"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.QuestionsPath == "" {
		req.QuestionsPath = s.config.Evaluation.QuestionsPath
	}
	if req.AnswersPath == "" {
		req.AnswersPath = s.config.Evaluation.AnswersPath
	}
	if req.QuestionsPath == "" || req.AnswersPath == "" {
		s.respondError(w, http.StatusBadRequest, "questions_path and answers_path are required")
		return
	}

	questions, err := evaluate.LoadLines(req.QuestionsPath)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	expected, err := evaluate.LoadLines(req.AnswersPath)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.work.Lock()
	report := s.deps.Evaluator.Evaluate(r.Context(), questions, expected)
	s.work.Unlock()
	s.respondJSON(w, http.StatusOK, report)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Fuzzy bool   `json:"fuzzy"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if req.Limit > maxSearchLimit {
		req.Limit = maxSearchLimit
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	hits, err := s.deps.Keyword.Search(r.Context(), req.Query, req.Limit, &keyword.SearchOptions{FuzzyEnabled: req.Fuzzy})
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []*keyword.Hit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": req.Query, "hits": hits})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
