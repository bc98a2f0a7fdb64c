// Package main is the tanya CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/evaluate"
	"github.com/hyperjump/tanya/internal/ingest"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tanya/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file means built-in defaults.
// .env files next to the config and in the working directory are loaded into the
// environment before any credential is read.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := resolveConfig(path)
	if err != nil {
		return nil, "", err
	}
	envPaths := []string{".env"}
	if resolved != "" {
		envPaths = append([]string{filepath.Join(filepath.Dir(resolved), ".env")}, envPaths...)
	}
	if err := config.LoadEnv(envPaths...); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func resolveConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "evaluate":
		runEvaluate()
	case "search":
		runSearch()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("tanya version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger, exiting on failure.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func exitOnError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{generator: true, keyword: true})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(server.Deps{
		Pipeline:  components.Pipeline,
		Session:   components.Session,
		Evaluator: components.Evaluator,
		Store:     components.Store,
		Keyword:   components.KeywordIndex,
	}, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printIngestUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tanya ingest [flags] <file|dir>...\n\n")
	fmt.Fprintf(fs.Output(), "Files are ingested as given; directories contribute their supported files.\n")
	fmt.Fprintf(fs.Output(), "Ingesting a file twice stores its chunks twice.\n\n")
	fs.PrintDefaults()
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	recursive := fs.Bool("recursive", false, "walk subdirectories of directory arguments")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in characters (0 = from config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "chunk overlap in characters (-1 = from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printIngestUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		printIngestUsage(fs)
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *chunkSize > 0 {
		cfg.Ingest.ChunkSize = *chunkSize
	}
	if *chunkOverlap >= 0 {
		cfg.Ingest.ChunkOverlap = chunkOverlap
	}
	exitOnError("Invalid chunking", cfg.Validate())

	paths, err := expandInputs(fs.Args(), *recursive, cfg.Ingest.Extensions)
	exitOnError("Failed to collect files", err)
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No supported files found")
		os.Exit(1)
	}

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{keyword: true})
	exitOnError("Failed to initialize", err)
	defer components.Close()

	result, err := components.Pipeline.Ingest(ctx, paths)
	exitOnError("Ingestion failed", err)
	exitOnError("Output failed", cli.WriteIngestResult(os.Stdout, result, format))
}

// expandInputs replaces directory arguments with the supported files they contain.
// Every other argument is passed through as given, so a missing or unreadable file
// is reported by the pipeline as a per-file failure.
func expandInputs(args []string, recursive bool, exts []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := ingest.CollectFiles(arg, recursive, exts)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	return paths, nil
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tanya ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  tanya ask What is the capital of France?
  tanya ask -top-k 5 -show-context "who signed the contract"
  tanya ask -server http://localhost:8080 what changed in v2
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "ask a running server instead of opening the index directly")
	topK := fs.Int("top-k", 0, "number of contexts to retrieve (0 = retrieval.default_top_k)")
	showContext := fs.Bool("show-context", false, "print the retrieved chunks")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	req := models.AskRequest{Question: question, TopK: *topK}

	var rec *models.AnswerRecord
	if *serverURL != "" {
		rec = &models.AnswerRecord{}
		exitOnError("Ask failed", postJSON(*serverURL, "/api/v1/ask", req, rec))
	} else {
		cfg, logger := setup(*configPath, *debug)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger, componentOptions{generator: true})
		exitOnError("Failed to initialize", err)
		defer components.Close()

		rec, err = components.Session.Ask(ctx, req)
		exitOnError("Ask failed", err)
	}
	exitOnError("Output failed", cli.WriteAnswer(os.Stdout, rec, format, *showContext))
}

func runEvaluate() {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	questionsPath := fs.String("questions", "", "questions file, one per line (default evaluation.questions_path)")
	answersPath := fs.String("answers", "", "expected answers file, one per line (default evaluation.answers_path)")
	maxCases := fs.Int("max-cases", 0, "maximum pairs to evaluate (0 = from config)")
	threshold := fs.Int("threshold", -1, "minimum fuzzy score counted as correct (-1 = from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	if *questionsPath != "" {
		cfg.Evaluation.QuestionsPath = *questionsPath
	}
	if *answersPath != "" {
		cfg.Evaluation.AnswersPath = *answersPath
	}
	if *maxCases > 0 {
		cfg.Evaluation.MaxCases = *maxCases
	}
	if *threshold >= 0 {
		cfg.Evaluation.Threshold = threshold
	}
	if cfg.Evaluation.QuestionsPath == "" || cfg.Evaluation.AnswersPath == "" {
		fmt.Fprintln(os.Stderr, "Both -questions and -answers (or evaluation.questions_path and evaluation.answers_path) are required")
		os.Exit(1)
	}
	questions, err := evaluate.LoadLines(cfg.Evaluation.QuestionsPath)
	exitOnError("Failed to load questions", err)
	expected, err := evaluate.LoadLines(cfg.Evaluation.AnswersPath)
	exitOnError("Failed to load answers", err)

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{generator: true})
	exitOnError("Failed to initialize", err)
	defer components.Close()

	report := components.Evaluator.Evaluate(ctx, questions, expected)
	exitOnError("Output failed", cli.WriteEvalReport(os.Stdout, report, format))
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Fuzzy bool   `json:"fuzzy"`
}

type searchResponse struct {
	Query string         `json:"query"`
	Hits  []*keyword.Hit `json:"hits"`
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "search a running server instead of opening the keyword index directly")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: tanya search [flags] <terms>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	req := searchRequest{Query: query, Limit: *limit, Fuzzy: *fuzzy}

	var resp searchResponse
	if *serverURL != "" {
		exitOnError("Search failed", postJSON(*serverURL, "/api/v1/search", req, &resp))
	} else {
		cfg, logger := setup(*configPath, *debug)
		defer logger.Sync()
		if cfg.Storage.KeywordIndexPath == "" {
			fmt.Fprintln(os.Stderr, "Keyword index disabled (storage.keyword_index_path is empty)")
			os.Exit(1)
		}
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		exitOnError("Failed to open keyword index", err)
		defer kw.Close()

		hits, err := kw.Search(context.Background(), query, *limit, &keyword.SearchOptions{FuzzyEnabled: *fuzzy})
		exitOnError("Search failed", err)
		// Retry with typo tolerance when the exact terms match nothing.
		if len(hits) == 0 && !*fuzzy {
			if fuzzyHits, fuzzyErr := kw.Search(context.Background(), query, *limit, &keyword.SearchOptions{FuzzyEnabled: true}); fuzzyErr == nil {
				hits = fuzzyHits
			}
		}
		resp = searchResponse{Query: query, Hits: hits}
	}
	exitOnError("Output failed", cli.WriteSearchHits(os.Stdout, resp.Query, resp.Hits, format))
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL (history lives in the server session)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	var resp struct {
		History []*models.AnswerRecord `json:"history"`
	}
	exitOnError("History failed", getJSON(*serverURL, "/api/v1/history", &resp))
	if len(resp.History) == 0 && format == cli.OutputText {
		fmt.Println("No questions asked yet.")
		return
	}
	for _, rec := range resp.History {
		if format == cli.OutputText {
			fmt.Printf("Q: %s\n", rec.Question)
		}
		exitOnError("Output failed", cli.WriteAnswer(os.Stdout, rec, format, false))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of opening the index directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	if *serverURL != "" {
		var raw map[string]interface{}
		exitOnError("Status failed", getJSON(*serverURL, "/api/v1/status", &raw))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		exitOnError("Output failed", enc.Encode(raw))
		return
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
	exitOnError("Failed to initialize", err)
	defer components.Close()

	sources, err := components.Store.Sources(ctx)
	exitOnError("Failed to list sources", err)
	diskBytes, err := components.Store.DiskUsage()
	if err != nil {
		logger.Warn("disk usage failed", zap.Error(err))
	}
	st := &cli.Status{
		IndexPath:      components.Store.Dir(),
		ModelID:        components.Store.ModelID(),
		Entries:        components.Store.Count(),
		DiskUsageBytes: diskBytes,
		Sources:        sources,
	}
	exitOnError("Output failed", cli.WriteStatus(os.Stdout, st, format))
}

// runConfig prints the effective configuration, or writes it to a file with -write.
func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	writePath := fs.String("write", "", "write the effective config to this path instead of printing it")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	exitOnError("Failed to load config", err)
	if *writePath != "" {
		exitOnError("Failed to write config", config.Save(*writePath, cfg))
		fmt.Printf("Config written to %s\n", *writePath)
		return
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	exitOnError("Output failed", enc.Encode(cfg))
}

// joinArgs joins positional args with spaces so multi-word input works with or without quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that follow positional arguments to the front, since the flag
// package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func postJSON(serverURL, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(serverURL, path string, out interface{}) error {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`tanya - Ask questions about your documents

Usage:
  tanya server [flags]                 Start the HTTP API
  tanya ingest [flags] <file|dir>...   Extract, chunk, embed and index documents
  tanya ask [flags] <question>         Answer a question from the indexed documents
  tanya evaluate [flags]               Score answers against question/answer fixtures
  tanya search [flags] <terms>         Keyword lookup over indexed chunks
  tanya history [flags]                Show the server's recent answers
  tanya status [flags]                 Show index statistics
  tanya config [flags]                 Print or write the effective config
  tanya version                        Show version
  tanya help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/tanya/config.yaml,
                     falling back to ./config.yaml, then built-in defaults)
  --debug            Enable debug logging
  --output string    Output format: text or json

Ingest Flags:
  --recursive           Walk subdirectories of directory arguments
  --chunk-size int      Override ingest.chunk_size
  --chunk-overlap int   Override ingest.chunk_overlap

Ask Flags:
  --top-k int           Contexts to retrieve (clamped to retrieval.max_top_k)
  --show-context        Print the retrieved chunks
  --server string       Ask a running server

Evaluate Flags:
  --questions string    Questions file, one per line
  --answers string      Expected answers file, one per line
  --max-cases int       Maximum pairs to evaluate
  --threshold int       Minimum fuzzy score counted as correct

The generation API key is read from the variable named by generation.api_key_env
(default GROQ_API_KEY). A .env file next to the config or in the working
directory is loaded first.`)
}
