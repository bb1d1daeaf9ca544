package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables (optionally from a
// .env file, which overrides process env the way the reference deployment
// expects for local development), applying spec.md §6's documented defaults
// for anything left unset.
func Load() Config {
	_ = godotenv.Overload()

	cfg := Config{
		EmbeddingDimension:            getEnvInt("EMBEDDING_DIMENSION", 768),
		ChunkSizeChars:                getEnvInt("CHUNK_SIZE_CHARS", 1000),
		ChunkOverlapChars:             getEnvInt("CHUNK_OVERLAP_CHARS", 200),
		SubscriberQueueDepth:          getEnvInt("SUBSCRIBER_QUEUE_DEPTH", 1024),
		PublishBackpressureDeadlineMS: getEnvInt("PUBLISH_BACKPRESSURE_DEADLINE_MS", 2000),
		ModelCompleteTimeoutMS:        getEnvInt("MODEL_COMPLETE_TIMEOUT_MS", 30000),
		ModelEmbedTimeoutMS:           getEnvInt("MODEL_EMBED_TIMEOUT_MS", 10000),
		ModelRetryAttempts:            getEnvInt("MODEL_RETRY_ATTEMPTS", 5),
		HandlerTimeoutMS:              getEnvInt("HANDLER_TIMEOUT_MS", 30000),
		ContextTTLMS:                  getEnvInt("CONTEXT_TTL_MS", 600000),
		RiskScoreFlagThreshold:        getEnvFloat("RISK_SCORE_FLAG_THRESHOLD", 0.8),
		ComplianceBlockThreshold:      getEnvFloat("COMPLIANCE_BLOCK_THRESHOLD", 0.95),
		ComplianceHoldThreshold:       getEnvFloat("COMPLIANCE_HOLD_THRESHOLD", 0.90),
		KnowledgeQuietPeriodMS:        getEnvInt("KNOWLEDGE_QUIET_PERIOD_MS", 5000),
		RetrievalTopK:                 getEnvInt("RETRIEVAL_TOP_K", 5),
		RetrievalExactCeilingChunks:   getEnvInt("RETRIEVAL_EXACT_CEILING_CHUNKS", 100000),
		ContextGracePeriodMS:          getEnvInt("CONTEXT_GRACE_PERIOD_MS", 60000),
		SupervisorMaxContexts:         getEnvInt("SUPERVISOR_MAX_CONTEXTS", 100000),
		DeadLetterQueueCapacity:       getEnvInt("DEAD_LETTER_QUEUE_CAPACITY", 10000),
		DeadLetterFilePath:            strings.TrimSpace(os.Getenv("DEAD_LETTER_FILE_PATH")),
		ReingestPolicy:                ReingestPolicy(firstNonEmpty(os.Getenv("REINGEST_POLICY"), string(ReingestSkipIfUnchanged))),

		Model: ModelConfig{
			Backend: firstNonEmpty(os.Getenv("MODEL_BACKEND"), "anthropic"),
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
				Model:   firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-3-7-sonnet-latest"),
			},
			OpenAI: OpenAIConfig{
				APIKey:     os.Getenv("OPENAI_API_KEY"),
				BaseURL:    os.Getenv("OPENAI_BASE_URL"),
				ChatModel:  firstNonEmpty(os.Getenv("OPENAI_CHAT_MODEL"), "gpt-4o-mini"),
				EmbedModel: firstNonEmpty(os.Getenv("OPENAI_EMBED_MODEL"), "text-embedding-3-small"),
			},
			CompleteTimeoutMS: getEnvInt("MODEL_COMPLETE_TIMEOUT_MS", 30000),
			EmbedTimeoutMS:    getEnvInt("MODEL_EMBED_TIMEOUT_MS", 10000),
			RetryAttempts:     getEnvInt("MODEL_RETRY_ATTEMPTS", 5),
			PoolSize:          getEnvInt("MODEL_POOL_SIZE", 16),
		},

		Qdrant: QdrantConfig{
			Enabled:    getEnvBool("QDRANT_ENABLED", false),
			DSN:        firstNonEmpty(os.Getenv("QDRANT_DSN"), "http://localhost:6334"),
			Collection: firstNonEmpty(os.Getenv("QDRANT_COLLECTION"), "regulatory_chunks"),
			Metric:     firstNonEmpty(os.Getenv("QDRANT_METRIC"), "cosine"),
		},

		Redis: RedisConfig{
			Addr: firstNonEmpty(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		},

		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			GroupID: firstNonEmpty(os.Getenv("KAFKA_GROUP_ID"), "sentinel-core"),
		},

		Observability: ObservabilityConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "sentinel-core"),
			Environment:  firstNonEmpty(os.Getenv("DEPLOY_ENVIRONMENT"), "development"),
			LogLevel:     firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			LogPath:      os.Getenv("LOG_PATH"),
		},
	}

	return cfg
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
