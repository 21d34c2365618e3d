package config

import (
	_ "embed"
	"errors"
	"fmt"
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
	Camera      CameraConfig
	Recognition RecognitionConfig
	Templates   TemplatesConfig
	MQTT        MQTTConfig
	Web         WebConfig
	PhotosDir   string         // base directory for relative enrollment photo paths
	Location    *time.Location // timezone used for attendance dates
}

type DatabaseConfig struct {
	Driver       string // postgres, sqlite or mysql (default postgres)
	URL          string // DSN / connection URL for the selected driver
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type CameraConfig struct {
	Device           string        // device index ("0") or capture URL
	Width            int           // preview width in pixels
	Height           int           // preview height in pixels
	FrameInterval    time.Duration // tick period of the kiosk loop
	RetryInterval    time.Duration // first backoff step after the device fails
	RetryMaxInterval time.Duration // backoff cap
}

type RecognitionConfig struct {
	Tolerance       float64 // max distance accepted as a match, lower = stricter
	RequiredMatches int     // net consecutive matching frames needed to confirm
	Metric          string  // euclidean or cosine
	CompareMaxDim   int     // frames are downscaled to this size before extraction
}

type TemplatesConfig struct {
	CacheTTL time.Duration // 0 disables the in-memory template cache
}

type MQTTConfig struct {
	Broker   string // host:port, empty disables publishing
	Topic    string
	ClientID string
}

type WebConfig struct {
	Host           string
	Port           int
	Token          string   // operator token required for kiosk mutations, empty disables the check
	AllowedOrigins []string // extra CORS origins for an operator console on another host
}

type fileDefaults struct {
	Recognition struct {
		Tolerance       float64 `yaml:"tolerance"`
		RequiredMatches int     `yaml:"required_matches"`
		Metric          string  `yaml:"metric"`
		CompareMaxDim   int     `yaml:"compare_max_dim"`
	} `yaml:"recognition"`
	Camera struct {
		Device           string        `yaml:"device"`
		Width            int           `yaml:"width"`
		Height           int           `yaml:"height"`
		FrameInterval    time.Duration `yaml:"frame_interval"`
		RetryInterval    time.Duration `yaml:"retry_interval"`
		RetryMaxInterval time.Duration `yaml:"retry_max_interval"`
	} `yaml:"camera"`
	Templates struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"templates"`
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

// envFloat reads an environment variable as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("15ms", "2s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, skipping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func loadDefaults() fileDefaults {
	var d fileDefaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// embedded file, a failure here is a build defect
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	loc := time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Camera: CameraConfig{
			Device:           envString("CAMERA_DEVICE", d.Camera.Device),
			Width:            envInt("CAMERA_WIDTH", d.Camera.Width),
			Height:           envInt("CAMERA_HEIGHT", d.Camera.Height),
			FrameInterval:    envDuration("FRAME_INTERVAL", d.Camera.FrameInterval),
			RetryInterval:    envDuration("CAMERA_RETRY_INTERVAL", d.Camera.RetryInterval),
			RetryMaxInterval: envDuration("CAMERA_RETRY_MAX_INTERVAL", d.Camera.RetryMaxInterval),
		},
		Recognition: RecognitionConfig{
			Tolerance:       envFloat("MATCH_TOLERANCE", d.Recognition.Tolerance),
			RequiredMatches: envInt("MATCH_REQUIRED", d.Recognition.RequiredMatches),
			Metric:          envString("MATCH_METRIC", d.Recognition.Metric),
			CompareMaxDim:   envInt("COMPARE_MAX_DIM", d.Recognition.CompareMaxDim),
		},
		Templates: TemplatesConfig{
			CacheTTL: envDuration("TEMPLATE_CACHE_TTL", d.Templates.CacheTTL),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "attendance/records"),
			ClientID: envString("MQTT_CLIENT_ID", "attendance-kiosk"),
		},
		Web: WebConfig{
			Host:  envString("WEB_HOST", "0.0.0.0"),
			Port:  envInt("WEB_PORT", 8080),
			Token: os.Getenv("KIOSK_TOKEN"),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		PhotosDir: os.Getenv("PHOTOS_DIR"),
		Location:  loc,
	}
}

// Validate checks the recognition and capture settings that the kiosk loop depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 1 {
		errs = append(errs, fmt.Errorf("MATCH_TOLERANCE must be in (0, 1], got %v", c.Recognition.Tolerance))
	}
	if c.Recognition.RequiredMatches < 1 {
		errs = append(errs, fmt.Errorf("MATCH_REQUIRED must be at least 1, got %d", c.Recognition.RequiredMatches))
	}
	switch c.Recognition.Metric {
	case "euclidean", "cosine":
	default:
		errs = append(errs, fmt.Errorf("MATCH_METRIC must be euclidean or cosine, got %q", c.Recognition.Metric))
	}
	if c.Camera.FrameInterval <= 0 {
		errs = append(errs, errors.New("FRAME_INTERVAL must be positive"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres, sqlite or mysql, got %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}
