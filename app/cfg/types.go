package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	BatchSize         int
	StuckAfter        time.Duration
	APIAccessKey      string

	// Pipeline
	FetchTimeout       time.Duration
	TriggerAfterIngest bool
	TriggerURL         string

	// Summarization
	OpenAIKey      string
	OpenAIBaseURL  string
	SummaryModel   string
	SummaryTimeout time.Duration
	SummaryTemp    float64
	SpeechModel    string
	SpeechVoice    string
	SpeechTimeout  time.Duration

	// Blob storage
	StorageBackend string
	StorageBucket  string
	StorageDir     string
	SupabaseURL    string
	SupabaseKey    string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	UploadTimeout  time.Duration

	// Caching and alerts
	RedisURL     string
	FeedCacheTTL time.Duration
	WebhookURL   string

	// Application metadata
	UserAgent string
	Timezone  string
	LogFormat string
	Debug     bool
	Version   string
}
