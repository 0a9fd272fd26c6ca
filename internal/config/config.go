package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIPort  string
	LogLevel string

	VATRate       float64
	VATCountry    string
	DefaultRegion string
	CatalogPath   string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	QdrantURL         string
	VectorCollections map[string]string

	EmbeddingURL    string
	EmbeddingModel  string
	EmbeddingAPIKey string

	ExternalTimeoutSeconds int
	CircuitBreakerEnabled  bool

	PostgresDSN   string
	SeedMaterials bool

	NATSURL     string
	NATSSubject string

	StoragePath string
	ScratchDir  string

	ExtractionWorkers    int
	MaxUploadMB          int
	CacheTTLExcelSeconds int
	CacheTTLPDFSeconds   int

	OCRPdftoppm  string
	OCRTesseract string
	OCRLang      string
	OCRDPI       int

	AllowedOrigins    []string
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		VATRate:       mustEnvFloat("VAT_RATE", 0.24),
		VATCountry:    mustEnv("VAT_COUNTRY", "EE"),
		DefaultRegion: mustEnv("DEFAULT_REGION", "Tartu"),
		CatalogPath:   mustEnv("CATALOG_PATH", ""),

		RedisHost:     mustEnv("REDIS_HOST", ""),
		RedisPort:     mustEnvInt("REDIS_PORT", 6379),
		RedisPassword: mustEnv("REDIS_PASSWORD", ""),
		RedisDB:       mustEnvInt("REDIS_DB", 0),

		QdrantURL: "http://" + mustEnv("QDRANT_HOST", "localhost") + ":" + mustEnv("QDRANT_PORT", "6333"),
		VectorCollections: parseCollections(
			mustEnv("VECTOR_COLLECTIONS", "en:construction_rates_en,de:construction_rates_de"),
		),

		EmbeddingURL:    mustEnv("EMBEDDING_URL", "https://api.openai.com/v1"),
		EmbeddingModel:  mustEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey: mustEnv("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),

		ExternalTimeoutSeconds: mustEnvInt("EXTERNAL_TIMEOUT_SECONDS", 10),
		CircuitBreakerEnabled:  mustEnvBool("CIRCUIT_BREAKER_ENABLED", true),

		PostgresDSN:   mustEnv("POSTGRES_DSN", ""),
		SeedMaterials: mustEnvBool("SEED_MATERIALS", true),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "extraction.jobs"),

		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),
		ScratchDir:  mustEnv("SCRATCH_DIR", ""),

		ExtractionWorkers:    mustEnvInt("EXTRACTION_WORKERS", 4),
		MaxUploadMB:          mustEnvInt("MAX_UPLOAD_MB", 50),
		CacheTTLExcelSeconds: mustEnvInt("CACHE_TTL_EXCEL_SECONDS", 7200),
		CacheTTLPDFSeconds:   mustEnvInt("CACHE_TTL_PDF_SECONDS", 3600),

		OCRPdftoppm:  mustEnv("OCR_PDFTOPPM", "pdftoppm"),
		OCRTesseract: mustEnv("OCR_TESSERACT", "tesseract"),
		OCRLang:      mustEnv("OCR_LANG", "eng+est"),
		OCRDPI:       mustEnvInt("OCR_DPI", 300),

		AllowedOrigins:    splitList(mustEnv("ALLOWED_ORIGINS", "*")),
		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:    mustEnvInt("API_MAX_INFLIGHT", 64),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// parseCollections reads "lang:collection" pairs separated by commas.
// Malformed pairs are skipped.
func parseCollections(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitList(raw) {
		lang, collection, ok := strings.Cut(pair, ":")
		lang = strings.ToLower(strings.TrimSpace(lang))
		collection = strings.TrimSpace(collection)
		if !ok || lang == "" || collection == "" {
			continue
		}
		out[lang] = collection
	}
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
