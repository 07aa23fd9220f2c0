package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrNoFeeds means the config names no video feeds at all. This is the
// only startup error that aborts the whole process.
var ErrNoFeeds = errors.New("no feeds configured")

// Duration parses "5s" style values from both YAML and env vars.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Feed описывает один видеопоток
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Config структура конфига
type Config struct {
	Feeds []Feed `yaml:"feeds"`

	Motion struct {
		PixelDiffThreshold uint8  `yaml:"pixel_diff_threshold" env:"PIXEL_DIFF_THRESHOLD"`
		MinArea            int    `yaml:"min_area" env:"MOTION_AREA_THRESHOLD"`
		Measure            string `yaml:"measure" env:"MOTION_MEASURE"` // "total" or "region"
	} `yaml:"motion"`

	Detection struct {
		Endpoint            string   `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold" env:"DETECTION_CONFIDENCE"`
		Classes             []string `yaml:"classes" env:"DETECTION_CLASSES" envSeparator:","`
		Cooldown            Duration `yaml:"cooldown" env:"DETECTION_COOLDOWN"`
		Timeout             Duration `yaml:"timeout" env:"DETECTION_TIMEOUT"`
		MaxConcurrent       int      `yaml:"max_concurrent" env:"DETECTION_MAX_CONCURRENT"`
	} `yaml:"detection"`

	Alerts struct {
		Labels     []string `yaml:"labels" env:"ALERT_LABELS" envSeparator:","`
		Cooldown   Duration `yaml:"cooldown" env:"ALERT_COOLDOWN"`
		Recipients []string `yaml:"recipients" env:"ALERT_EMAILS" envSeparator:","`
		SMTP       struct {
			Server   string `yaml:"server" env:"SMTP_SERVER"`
			Port     int    `yaml:"port" env:"SMTP_PORT"`
			User     string `yaml:"user" env:"SMTP_USER"`
			Password string `yaml:"password" env:"SMTP_PASSWORD"`
		} `yaml:"smtp"`
	} `yaml:"alerts"`

	Kafka struct {
		Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		AlertTopic   string   `yaml:"alert_topic" env:"ALERT_TOPIC"`
		CommandTopic string   `yaml:"command_topic" env:"COMMAND_TOPIC"`
	} `yaml:"kafka"`

	Storage struct {
		Backend string `yaml:"backend" env:"STORAGE_BACKEND"` // "local" or "s3"
		Dir     string `yaml:"dir" env:"STORAGE_DIR"`
		Minio   struct {
			Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
			AccessKey       string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
			SecretKey       string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
			CaptureBucket   string `yaml:"capture_bucket" env:"MINIO_CAPTURE_BUCKET"`
			DetectionBucket string `yaml:"detection_bucket" env:"MINIO_DETECTION_BUCKET"`
		} `yaml:"minio"`
	} `yaml:"storage"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Stream struct {
		ReconnectDelay Duration `yaml:"reconnect_delay" env:"STREAM_RECONNECT_DELAY"`
		FrameInterval  Duration `yaml:"frame_interval" env:"FRAME_INTERVAL"`
	} `yaml:"stream"`
}

// Load читает YAML и накатывает переменные окружения с приоритетом
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Motion.PixelDiffThreshold == 0 {
		c.Motion.PixelDiffThreshold = 25
	}
	if c.Motion.MinArea == 0 {
		c.Motion.MinArea = 1500
	}
	if c.Motion.Measure == "" {
		c.Motion.Measure = "total"
	}
	if c.Detection.ConfidenceThreshold == 0 {
		c.Detection.ConfidenceThreshold = 0.6
	}
	if len(c.Detection.Classes) == 0 {
		c.Detection.Classes = []string{"person", "car"}
	}
	if c.Detection.Cooldown == 0 {
		c.Detection.Cooldown = Duration(5 * time.Second)
	}
	if c.Detection.Timeout == 0 {
		c.Detection.Timeout = Duration(30 * time.Second)
	}
	if c.Detection.MaxConcurrent == 0 {
		c.Detection.MaxConcurrent = 2
	}
	if len(c.Alerts.Labels) == 0 {
		c.Alerts.Labels = []string{"person"}
	}
	if c.Alerts.Cooldown == 0 {
		c.Alerts.Cooldown = Duration(60 * time.Second)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.Minio.CaptureBucket == "" {
		c.Storage.Minio.CaptureBucket = "captures"
	}
	if c.Storage.Minio.DetectionBucket == "" {
		c.Storage.Minio.DetectionBucket = "detections"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "camera-sentry"
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = Duration(5 * time.Second)
	}
	if c.Stream.FrameInterval == 0 {
		c.Stream.FrameInterval = Duration(200 * time.Millisecond)
	}
}

// Validate rejects configs the pipeline cannot start with.
func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return ErrNoFeeds
	}
	seen := make(map[string]struct{}, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("feed %q: name and url are required", f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate feed name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if c.Detection.Endpoint == "" {
		return errors.New("detection endpoint is required")
	}
	switch c.Motion.Measure {
	case "total", "region":
	default:
		return fmt.Errorf("unknown motion measure %q", c.Motion.Measure)
	}
	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
