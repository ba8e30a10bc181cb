package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CLASSIFIER_VADER       = "vader"
	CLASSIFIER_HUGOT       = "hugot"
	CLASSIFIER_HUGGINGFACE = "huggingface"
	CLASSIFIER_OPENAI      = "openai"
)

type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	Classifier ClassifierConfig
	Analyzer   AnalyzerConfig
	AWS        AWSConfig
	Valkey     ValkeyConfig
	Kafka      KafkaConfig

	MaxUploadBytes int64
}

type ClassifierConfig struct {
	Backend string

	HuggingFaceEndpoint string
	HuggingFaceToken    string
	HuggingFaceTimeout  time.Duration

	HugotModel    string
	HugotModelDir string

	OpenAIAPIKey string
	OpenAIModel  string

	HealthCheckInterval time.Duration
}

type AnalyzerConfig struct {
	Concurrency int
	BatchSize   int
	ItemTimeout time.Duration
}

type AWSConfig struct {
	Region        string
	Endpoint      string
	FeedbackTable string
}

type ValkeyConfig struct {
	Address  string
	Password string
	UseTLS   bool
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Broker          string
	GroupID         string
	TransactionalID string
	SubmittedTopic  string
	AnalyzedTopic   string
	BatchSize       int
	BatchTimeout    time.Duration
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// Load reads the configuration from the environment. Call LoadEnv first to
// pick up the .env file for the current APP_ENV.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Classifier: ClassifierConfig{
			Backend:             strings.ToLower(getEnv("CLASSIFIER", CLASSIFIER_VADER)),
			HuggingFaceEndpoint: getEnv("HF_ENDPOINT", "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english"),
			HuggingFaceToken:    getEnv("HF_TOKEN", ""),
			HuggingFaceTimeout:  getEnvDuration("HF_TIMEOUT", 60*time.Second),
			HugotModel:          getEnv("HUGOT_MODEL", "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"),
			HugotModelDir:       getEnv("HUGOT_MODEL_DIR", "./models"),
			OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			HealthCheckInterval: getEnvDuration("CLASSIFIER_HEALTHCHECK_INTERVAL", 15*time.Second),
		},

		Analyzer: AnalyzerConfig{
			Concurrency: getEnvInt("ANALYZER_CONCURRENCY", 4),
			BatchSize:   getEnvInt("ANALYZER_BATCH_SIZE", 16),
			ItemTimeout: getEnvDuration("ANALYZER_ITEM_TIMEOUT", 0),
		},

		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", "us-west-2"),
			Endpoint:      getEnv("AWS_ENDPOINT", ""),
			FeedbackTable: getEnv("FEEDBACK_TABLE", "Feedback"),
		},

		Valkey: ValkeyConfig{
			Address:  getEnv("VALKEY_INIT_ADDRESS", ""),
			Password: getEnv("VALKEY_PASSWORD", ""),
			UseTLS:   getEnvBool("VALKEY_TLS", false),
			CacheTTL: getEnvDuration("VALKEY_CACHE_TTL", 24*time.Hour),
		},

		Kafka: KafkaConfig{
			Broker:          getEnv("KAFKA_BROKER", "localhost:29092"),
			GroupID:         getEnv("KAFKA_CONSUMER_GROUP_ID", "moodmeter-consumer-group"),
			TransactionalID: getEnv("KAFKA_TRANSACTIONAL_ID", "moodmeter-producer-1"),
			SubmittedTopic:  getEnv("KAFKA_TOPIC_FEEDBACK_SUBMITTED", "feedback-submitted"),
			AnalyzedTopic:   getEnv("KAFKA_TOPIC_FEEDBACK_ANALYZED", "feedback-analyzed"),
			BatchSize:       getEnvInt("KAFKA_BATCH_SIZE", 50),
			BatchTimeout:    getEnvDuration("KAFKA_BATCH_TIMEOUT", 5*time.Second),
		},

		// 16MB, same as the upload limit of the web form
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 16*1024*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case CLASSIFIER_VADER, CLASSIFIER_HUGOT:
	case CLASSIFIER_HUGGINGFACE:
		if c.Classifier.HuggingFaceEndpoint == "" {
			return fmt.Errorf("HF_ENDPOINT is required for the %s classifier", c.Classifier.Backend)
		}
	case CLASSIFIER_OPENAI:
		if c.Classifier.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s classifier", c.Classifier.Backend)
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER %q", c.Classifier.Backend)
	}

	if c.Analyzer.Concurrency < 1 {
		return fmt.Errorf("ANALYZER_CONCURRENCY must be at least 1, got %d", c.Analyzer.Concurrency)
	}
	if c.Analyzer.BatchSize < 1 {
		return fmt.Errorf("ANALYZER_BATCH_SIZE must be at least 1, got %d", c.Analyzer.BatchSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}
