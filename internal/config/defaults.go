package config

// Provider names shared by the embedding and generation sections.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderHash   = "hash"
)

const (
	defaultChunkSize    = 350
	defaultChunkOverlap = 60
	defaultTemperature  = float32(0.2)
	defaultThreshold    = 70
)

// ApplyDefaults sets default values for any zero values in cfg. Pointer fields are
// only defaulted when absent, so an explicit 0 survives.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/tanya/data/index"
	}
	if cfg.Storage.DocumentsDir == "" {
		cfg.Storage.DocumentsDir = "/usr/local/var/tanya/data/documents"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/tanya/data/keyword"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOllama
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.Model = "text-embedding-3-small"
		case ProviderONNX:
			cfg.Embedding.Model = "all-MiniLM-L6-v2"
		case ProviderHash:
			cfg.Embedding.Model = "hash-v1"
		default:
			cfg.Embedding.Model = "all-minilm"
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderOpenAI
	}
	if cfg.Generation.Provider == ProviderOpenAI && cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Generation.Model == "" {
		if cfg.Generation.Provider == ProviderOllama {
			cfg.Generation.Model = "llama3.1"
		} else {
			cfg.Generation.Model = "llama-3.1-8b-instant"
		}
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Generation.Temperature == nil {
		t := defaultTemperature
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = defaultChunkSize
	}
	if cfg.Ingest.ChunkOverlap == nil {
		o := defaultChunkOverlap
		cfg.Ingest.ChunkOverlap = &o
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 3
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 5
	}
	if cfg.Evaluation.TopK == 0 {
		cfg.Evaluation.TopK = 4
	}
	if cfg.Evaluation.MaxCases == 0 {
		cfg.Evaluation.MaxCases = 20
	}
	if cfg.Evaluation.Threshold == nil {
		t := defaultThreshold
		cfg.Evaluation.Threshold = &t
	}
	if cfg.History.Size == 0 {
		cfg.History.Size = 10
	}
}
