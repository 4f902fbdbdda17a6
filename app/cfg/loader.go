package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// Command names accepted on the command line. Serve is used when none is given.
const (
	CommandServe   = "serve"
	CommandIngest  = "ingest"
	CommandProcess = "process"
	CommandJobs    = "jobs"
	CommandRequeue = "requeue"
	CommandMigrate = "migrate"
)

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" default:"file:rss-cast.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)" description:"Database connection string"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing content source definitions"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://cast.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	BatchSize         int    `long:"batch-size" env:"BATCH_SIZE" default:"1" description:"Jobs processed per scheduler tick"`
	StuckAfter        int    `long:"stuck-after" env:"STUCK_AFTER" default:"900" description:"Seconds after which a running job is requeued"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Pipeline
	FetchTimeout       int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout in seconds for article and feed fetches"`
	TriggerAfterIngest bool   `long:"trigger-after-ingest" env:"TRIGGER_AFTER_INGEST" description:"Kick the job processor once after each ingestion run"`
	TriggerURL         string `long:"trigger-url" env:"TRIGGER_URL" description:"Remote job processor endpoint (defaults to in-process)"`

	// Summarization and speech
	OpenAIKey      string  `long:"openai-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	OpenAIBaseURL  string  `long:"openai-base-url" env:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" description:"OpenAI-compatible API base URL"`
	SummaryModel   string  `long:"summary-model" env:"SUMMARY_MODEL" default:"gpt-4o-mini" description:"Chat model used for summaries"`
	SummaryTimeout int     `long:"summary-timeout" env:"SUMMARY_TIMEOUT" default:"120" description:"Summary request timeout in seconds"`
	SummaryTemp    float64 `long:"summary-temperature" env:"SUMMARY_TEMPERATURE" default:"0.7" description:"Sampling temperature for summaries"`
	SpeechModel    string  `long:"speech-model" env:"SPEECH_MODEL" default:"tts-1" description:"Text-to-speech model"`
	SpeechVoice    string  `long:"speech-voice" env:"SPEECH_VOICE" default:"alloy" description:"Text-to-speech voice"`
	SpeechTimeout  int     `long:"speech-timeout" env:"SPEECH_TIMEOUT" default:"150" description:"Speech request timeout in seconds"`

	// Blob storage
	StorageBackend string `long:"storage" env:"STORAGE_BACKEND" default:"local" choice:"local" choice:"supabase" choice:"s3" description:"Audio storage backend"`
	StorageBucket  string `long:"storage-bucket" env:"STORAGE_BUCKET" default:"audio" description:"Bucket for audio files"`
	StorageDir     string `long:"storage-dir" env:"STORAGE_DIR" default:"./data/audio" description:"Directory for the local storage backend"`
	SupabaseURL    string `long:"supabase-url" env:"SUPABASE_URL" description:"Supabase project URL"`
	SupabaseKey    string `long:"supabase-key" env:"SUPABASE_SERVICE_KEY" description:"Supabase service role key"`
	S3Endpoint     string `long:"s3-endpoint" env:"S3_ENDPOINT" description:"S3-compatible endpoint (e.g., Cloudflare R2)"`
	S3Region       string `long:"s3-region" env:"S3_REGION" default:"auto" description:"S3 region"`
	S3AccessKey    string `long:"s3-access-key" env:"S3_ACCESS_KEY_ID" description:"S3 access key id"`
	S3SecretKey    string `long:"s3-secret-key" env:"S3_SECRET_ACCESS_KEY" description:"S3 secret access key"`
	S3PublicURL    string `long:"s3-public-url" env:"S3_PUBLIC_URL" description:"Public base URL for objects in the bucket"`
	UploadTimeout  int    `long:"upload-timeout" env:"UPLOAD_TIMEOUT" default:"180" description:"Audio upload timeout in seconds"`

	// Caching and alerts
	RedisURL     string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for enclosure size and feed caching (optional)"`
	FeedCacheTTL int    `long:"feed-cache-ttl" env:"FEED_CACHE_TTL" default:"300" description:"Seconds a rendered feed stays cached"`
	WebhookURL   string `long:"webhook-url" env:"ALERT_WEBHOOK_URL" description:"Webhook receiving pipeline warnings and errors (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Cast/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Serve   struct{} `command:"serve" description:"Run the HTTP server and background scheduler"`
	Ingest  struct{} `command:"ingest" description:"Fetch all sources once and exit"`
	Process struct{} `command:"process" description:"Process a batch of pending jobs and exit"`
	Jobs    struct {
		Status string `long:"status" description:"Only list jobs with this status"`
		Limit  int    `long:"limit" default:"50" description:"Maximum jobs to list"`
	} `command:"jobs" description:"List jobs"`
	Requeue struct {
		Stuck bool `long:"stuck" description:"Requeue jobs stuck in running instead of failed ones"`
		Args  struct {
			IDs []string `positional-arg-name:"job-id"`
		} `positional-args:"yes"`
	} `command:"requeue" description:"Move failed jobs back to pending"`
	Migrate struct{} `command:"migrate" description:"Apply database migrations and exit"`
}

// Invocation is the command selected on the command line together with its arguments.
type Invocation struct {
	Command      string
	JobStatus    string
	JobLimit     int
	RequeueIDs   []string
	RequeueStuck bool
}

// Load reads .env (when present), environment variables and command-line flags.
// It returns nil values when help was requested.
func Load(args []string) (*Cfg, *Invocation, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil, nil
			}
		}
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:           raw.DBDriver,
		DBDSN:              raw.DBDSN,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		WorkerCount:        max(raw.WorkerCount, 1),
		SchedulerInterval:  raw.SchedulerInterval,
		BatchSize:          max(raw.BatchSize, 1),
		StuckAfter:         seconds(raw.StuckAfter),
		APIAccessKey:       raw.APIAccessKey,
		FetchTimeout:       seconds(raw.FetchTimeout),
		TriggerAfterIngest: raw.TriggerAfterIngest,
		TriggerURL:         raw.TriggerURL,
		OpenAIKey:          raw.OpenAIKey,
		OpenAIBaseURL:      raw.OpenAIBaseURL,
		SummaryModel:       raw.SummaryModel,
		SummaryTimeout:     seconds(raw.SummaryTimeout),
		SummaryTemp:        raw.SummaryTemp,
		SpeechModel:        raw.SpeechModel,
		SpeechVoice:        raw.SpeechVoice,
		SpeechTimeout:      seconds(raw.SpeechTimeout),
		StorageBackend:     raw.StorageBackend,
		StorageBucket:      raw.StorageBucket,
		StorageDir:         raw.StorageDir,
		SupabaseURL:        raw.SupabaseURL,
		SupabaseKey:        raw.SupabaseKey,
		S3Endpoint:         raw.S3Endpoint,
		S3Region:           raw.S3Region,
		S3AccessKey:        raw.S3AccessKey,
		S3SecretKey:        raw.S3SecretKey,
		S3PublicURL:        raw.S3PublicURL,
		UploadTimeout:      seconds(raw.UploadTimeout),
		RedisURL:           raw.RedisURL,
		FeedCacheTTL:       seconds(raw.FeedCacheTTL),
		WebhookURL:         raw.WebhookURL,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		LogFormat:          raw.LogFormat,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if cfg.BaseUrl == "" {
		cfg.BaseUrl = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	inv := &Invocation{
		Command:      CommandServe,
		JobStatus:    raw.Jobs.Status,
		JobLimit:     raw.Jobs.Limit,
		RequeueIDs:   raw.Requeue.Args.IDs,
		RequeueStuck: raw.Requeue.Stuck,
	}
	if parser.Active != nil {
		inv.Command = parser.Active.Name
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, inv, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
