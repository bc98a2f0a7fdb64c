package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/evaluate"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/ingest"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/retrieve"
	"github.com/hyperjump/tanya/internal/session"
	"github.com/hyperjump/tanya/internal/vectorstore"
)

type testEnv struct {
	srv      *Server
	cfg      *config.Config
	genCalls *int
}

func newTestServer(t *testing.T, withKeyword bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Storage.IndexPath = filepath.Join(dir, "index")
	cfg.Storage.DocumentsDir = filepath.Join(dir, "documents")
	cfg.Storage.KeywordIndexPath = ""

	embedder := embedding.NewHashEmbedder(32)
	store, err := vectorstore.Open(ctx, cfg.Storage.IndexPath, vectorstore.Options{
		ModelID:    embedder.ModelID(),
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var kw keyword.Index
	opts := []ingest.PipelineOption{ingest.WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())}
	if withKeyword {
		bleveIdx, err := keyword.NewBleveIndex("")
		if err != nil {
			t.Fatalf("keyword index: %v", err)
		}
		t.Cleanup(func() { bleveIdx.Close() })
		kw = bleveIdx
		opts = append(opts, ingest.WithKeywordIndex(bleveIdx))
	}
	pipeline, err := ingest.NewPipeline(extract.NewExtractor(), embedder, store, opts...)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	calls := 0
	gen := answer.GeneratorFunc(func(_ context.Context, _, _ string, _ float32) (string, error) {
		calls++
		return "Paris", nil
	})
	retriever := retrieve.NewRetriever(embedder, store)
	synth := answer.NewSynthesizer(gen, "test-model")

	deps := Deps{
		Pipeline:  pipeline,
		Session:   session.NewService(retriever, synth),
		Evaluator: evaluate.NewEvaluator(retriever, synth),
		Store:     store,
		Keyword:   kw,
	}
	return &testEnv{srv: NewServer(deps, cfg, zap.NewNop()), cfg: cfg, genCalls: &calls}
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestHandleIngestDocuments_Paths(t *testing.T) {
	env := newTestServer(t, false)
	path := writeDoc(t, t.TempDir(), "france.txt", "Paris is the capital of France.")

	w := httptest.NewRecorder()
	env.srv.handleIngestDocuments(w, jsonRequest(t, http.MethodPost, "/api/v1/documents", map[string]interface{}{"paths": []string{path}}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var result models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Inserted != 1 {
		t.Errorf("inserted: got %d, want 1", result.Inserted)
	}
	if env.srv.deps.Store.Count() != 1 {
		t.Errorf("store count: got %d, want 1", env.srv.deps.Store.Count())
	}
}

func TestHandleIngestDocuments_Empty(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleIngestDocuments(w, jsonRequest(t, http.MethodPost, "/api/v1/documents", map[string]interface{}{"paths": []string{}}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	env.srv.handleIngestDocuments(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("not json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body status: got %d, want 400", w.Code)
	}
}

func TestHandleIngestDocuments_Upload(t *testing.T) {
	env := newTestServer(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("The Eiffel Tower is in Paris."))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	env.srv.handleIngestDocuments(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	saved := filepath.Join(env.cfg.Storage.DocumentsDir, "notes.txt")
	if _, err := os.Stat(saved); err != nil {
		t.Errorf("upload not saved: %v", err)
	}

	w = httptest.NewRecorder()
	env.srv.handleListDocuments(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var out struct {
		Files   []documentFile          `json:"files"`
		Indexed []*models.SourceSummary `json:"indexed"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Files) != 1 || out.Files[0].Name != "notes.txt" {
		t.Errorf("files: got %+v", out.Files)
	}
	if len(out.Indexed) != 1 || out.Indexed[0].Chunks != 1 {
		t.Errorf("indexed: got %+v", out.Indexed)
	}
}

func TestHandleListDocuments_MissingDir(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleListDocuments(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200 for missing documents dir", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	env := newTestServer(t, false)
	path := writeDoc(t, t.TempDir(), "france.txt", "Paris is the capital of France.")
	if _, err := env.srv.deps.Pipeline.Ingest(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	env.srv.handleAsk(w, jsonRequest(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "What is the capital of France?"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var rec models.AnswerRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Answer != "Paris" {
		t.Errorf("answer: got %q", rec.Answer)
	}
	if rec.Confidence <= 0 || rec.Confidence > 1 {
		t.Errorf("confidence: got %v", rec.Confidence)
	}
	if len(rec.Sources) != 1 || rec.Sources[0].Source != "france.txt" || rec.Sources[0].Chunk != 0 {
		t.Errorf("sources: got %+v", rec.Sources)
	}

	w = httptest.NewRecorder()
	env.srv.handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	var hist struct {
		History []*models.AnswerRecord `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.History) != 1 || hist.History[0].Question != "What is the capital of France?" {
		t.Errorf("history: got %+v", hist.History)
	}
}

func TestHandleAsk_EmptyIndex(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleAsk(w, jsonRequest(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "anything"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var rec models.AnswerRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Answer != models.NotFoundAnswer || rec.Confidence != 0 || len(rec.Sources) != 0 {
		t.Errorf("record: got %+v", rec)
	}
	if *env.genCalls != 0 {
		t.Errorf("generator calls: got %d, want 0", *env.genCalls)
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleAsk(w, jsonRequest(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "  "}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleEvaluate(t *testing.T) {
	env := newTestServer(t, false)
	path := writeDoc(t, t.TempDir(), "france.txt", "Paris is the capital of France.")
	if _, err := env.srv.deps.Pipeline.Ingest(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}
	fixtures := t.TempDir()
	qPath := writeDoc(t, fixtures, "questions.txt", "What is the capital of France?\nWhere is the Eiffel Tower?\n")
	aPath := writeDoc(t, fixtures, "answers.txt", "Paris\nBerlin\n")

	w := httptest.NewRecorder()
	env.srv.handleEvaluate(w, jsonRequest(t, http.MethodPost, "/api/v1/evaluate", evaluateRequest{QuestionsPath: qPath, AnswersPath: aPath}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var report models.EvalReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Total != 2 {
		t.Errorf("total: got %d, want 2", report.Total)
	}
	if report.Accuracy != 0.5 {
		t.Errorf("accuracy: got %v, want 0.5", report.Accuracy)
	}
}

func TestHandleEvaluate_MissingPaths(t *testing.T) {
	env := newTestServer(t, false)
	env.cfg.Evaluation.QuestionsPath = ""
	env.cfg.Evaluation.AnswersPath = ""

	w := httptest.NewRecorder()
	env.srv.handleEvaluate(w, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	env.srv.handleEvaluate(w, jsonRequest(t, http.MethodPost, "/api/v1/evaluate", evaluateRequest{
		QuestionsPath: filepath.Join(t.TempDir(), "nope.txt"),
		AnswersPath:   filepath.Join(t.TempDir(), "nope.txt"),
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file status: got %d, want 400", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestServer(t, true)
	path := writeDoc(t, t.TempDir(), "france.txt", "Paris is the capital of France.")
	if _, err := env.srv.deps.Pipeline.Ingest(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	env.srv.handleSearch(w, jsonRequest(t, http.MethodPost, "/api/v1/search", searchRequest{Query: "capital"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Hits []*keyword.Hit `json:"hits"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Hits) != 1 || out.Hits[0].Source != "france.txt" {
		t.Errorf("hits: got %+v", out.Hits)
	}

	w = httptest.NewRecorder()
	env.srv.handleSearch(w, jsonRequest(t, http.MethodPost, "/api/v1/search", searchRequest{Query: ""}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d, want 400", w.Code)
	}
}

func TestHandleSearch_NotEnabled(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleSearch(w, jsonRequest(t, http.MethodPost, "/api/v1/search", searchRequest{Query: "x"}))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestServer(t, false)
	w := httptest.NewRecorder()
	env.srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["entries"].(float64) != 0 {
		t.Errorf("entries: got %v", out["entries"])
	}
	if out["model_id"] != "hash-v1/32" {
		t.Errorf("model_id: got %v", out["model_id"])
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Error("missing disk_usage_bytes")
	}
}
