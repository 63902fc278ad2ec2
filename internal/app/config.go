package app

import (
	"strings"
	"time"

	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/utils"
)

type Config struct {
	ServerAddr     string
	AllowOrigins   []string
	RedisAddr      string
	RedisPassword  string
	IngestQueue    string
	ErrorQueue     string
	IngestWorkers  int
	UploadDir      string
	SchemaPath     string
	MergePolicy    string
	StaleThreshold time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "localhost:6379", log)
	redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
	ingestQueue := utils.GetEnv("INGEST_QUEUE", "ingest", log)
	errorQueue := utils.GetEnv("ERROR_QUEUE", "error", log)
	ingestWorkers := utils.GetEnvAsInt("INGEST_WORKERS", 4, log)
	uploadDir := utils.GetEnv("UPLOAD_DIR", "/tmp/dedupe-uploads", log)
	schemaPath := utils.GetEnv("SCHEMA_PATH", "", log)
	mergePolicy := utils.GetEnv("MERGE_POLICY", "fill-missing", log)
	staleMinutes := utils.GetEnvAsInt("STALE_THRESHOLD_MINUTES", 30, log)

	return Config{
		ServerAddr:     ":" + port,
		AllowOrigins:   splitOrigins(origins),
		RedisAddr:      redisAddr,
		RedisPassword:  redisPassword,
		IngestQueue:    ingestQueue,
		ErrorQueue:     errorQueue,
		IngestWorkers:  ingestWorkers,
		UploadDir:      uploadDir,
		SchemaPath:     schemaPath,
		MergePolicy:    mergePolicy,
		StaleThreshold: time.Duration(staleMinutes) * time.Minute,
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
