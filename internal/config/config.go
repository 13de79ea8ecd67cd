package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Embedding   EmbeddingConfig
	Recognition RecognitionConfig
	Calendar    CalendarConfig
	Web         WebConfig
	Labels      LabelsConfig
}

type DatabaseConfig struct {
	Driver             string // postgres, sqlite or mysql (default postgres when URL is set, sqlite otherwise)
	URL                string // PostgreSQL connection URL or MySQL DSN
	SQLitePath         string // Path to the embedded SQLite file (default attendance.db)
	MaxOpenConns       int    // Maximum open connections (default 25)
	MaxIdleConns       int    // Maximum idle connections (default 5)
	ReferenceIndexPath string // Path to persist the reference embedding HNSW graph (optional)
	Debug              bool   // Verbose SQL logging for the gorm backends
}

type EmbeddingConfig struct {
	URL          string  // defaults to http://localhost:8000
	Dim          int     // defaults to 512
	MaxImageSize int     // frames and photos are downscaled to this edge length before upload
	RPS          float64 // requests per second towards the embedding server, 0 disables throttling
}

type RecognitionConfig struct {
	Threshold float64       // maximum Euclidean distance for a match (default 0.5)
	Interval  time.Duration // polling period between detection cycles (default 600ms)
}

type CalendarConfig struct {
	WeeklyOffDay time.Weekday // default Sunday
}

type WebConfig struct {
	Host             string
	Port             int
	AllowedOrigins   []string
	HolidayCacheTTL  time.Duration
	SessionIdleLimit time.Duration // inactive recognition sessions are deactivated after this period
}

// LabelsConfig holds the human-facing strings used in reports and session statuses.
type LabelsConfig struct {
	Weekdays []string          `yaml:"weekdays"`
	Months   []string          `yaml:"months"`
	Status   map[string]string `yaml:"status"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool accepts 1/true/yes (case-insensitive).
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// ParseWeekday converts an English weekday name (or its three letter prefix) to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return time.Sunday, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.HasPrefix(strings.ToLower(d.String()), name[:3]) {
			return d, true
		}
	}
	return time.Sunday, false
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var labels LabelsConfig
	if err := yaml.Unmarshal(defaultsYAML, &labels); err != nil {
		// Embedded file, so this only fails on a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	weeklyOff, ok := ParseWeekday(os.Getenv("WEEKLY_OFF_DAY"))
	if !ok {
		weeklyOff = time.Sunday
	}

	dbURL := os.Getenv("DATABASE_URL")
	driver := strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = "sqlite"
		if dbURL != "" {
			driver = "postgres"
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:             driver,
			URL:                dbURL,
			SQLitePath:         envString("SQLITE_PATH", "attendance.db"),
			MaxOpenConns:       envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ReferenceIndexPath: os.Getenv("REFERENCE_INDEX_PATH"),
			Debug:              envBool("DATABASE_DEBUG"),
		},
		Embedding: EmbeddingConfig{
			URL:          os.Getenv("EMBEDDING_URL"),
			Dim:          envInt("EMBEDDING_DIM", 512),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", 1280),
			RPS:          envFloat("EMBEDDING_RPS", 0),
		},
		Recognition: RecognitionConfig{
			Threshold: envFloat("RECOGNITION_THRESHOLD", 0.5),
			Interval:  time.Duration(envInt("RECOGNITION_INTERVAL_MS", 600)) * time.Millisecond,
		},
		Calendar: CalendarConfig{
			WeeklyOffDay: weeklyOff,
		},
		Web: WebConfig{
			Host:             envString("WEB_HOST", "0.0.0.0"),
			Port:             envInt("WEB_PORT", 8080),
			AllowedOrigins:   splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
			HolidayCacheTTL:  time.Duration(envInt("HOLIDAY_CACHE_TTL_SECONDS", 300)) * time.Second,
			SessionIdleLimit: time.Duration(envInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		},
		Labels: labels,
	}
}

// StatusMessage returns the configured status text for key, or key itself when unknown.
func (c *Config) StatusMessage(key string) string {
	if msg, ok := c.Labels.Status[key]; ok {
		return msg
	}
	return key
}
