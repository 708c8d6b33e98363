package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the speech gateway.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Models        ModelsConfig        `mapstructure:"models"`
	Inference     InferenceConfig     `mapstructure:"inference"`
	Audio         AudioConfig         `mapstructure:"audio"`
	RateLimits    RateLimitConfig     `mapstructure:"rate_limits"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Health        HealthConfig        `mapstructure:"health"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type ModelsConfig struct {
	Dir          string `mapstructure:"dir"`
	RunnerBin    string `mapstructure:"runner_bin"`
	Recognition  string `mapstructure:"recognition"`
	Alignment    string `mapstructure:"alignment"`
	Synthesis    string `mapstructure:"synthesis"`
	Quality      string `mapstructure:"quality"`
	QualityLabel string `mapstructure:"quality_label"`
}

type InferenceConfig struct {
	RecognitionConcurrency int           `mapstructure:"recognition_concurrency"`
	AlignmentConcurrency   int           `mapstructure:"alignment_concurrency"`
	SynthesisConcurrency   int           `mapstructure:"synthesis_concurrency"`
	QualityConcurrency     int           `mapstructure:"quality_concurrency"`
	QueueTimeout           time.Duration `mapstructure:"queue_timeout"`
	MemorySampleInterval   time.Duration `mapstructure:"memory_sample_interval"`
	DefaultLanguage        string        `mapstructure:"default_language"`
}

type AudioConfig struct {
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
	FFprobeBin  string `mapstructure:"ffprobe_bin"`
	FFmpegBin   string `mapstructure:"ffmpeg_bin"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else {
		if cfg := os.Getenv("SPEECHD_CONFIG_FILE"); cfg != "" {
			v.SetConfigFile(cfg)
			explicitFile = true
		}
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("speechd")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("SPEECHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills safe fallbacks.
func (c *Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.Models.Dir) == "" {
		missing = append(missing, "SPEECHD_MODELS_DIR")
	}
	if strings.TrimSpace(c.Models.RunnerBin) == "" {
		missing = append(missing, "SPEECHD_MODELS_RUNNER_BIN")
	}
	if strings.TrimSpace(c.Models.Recognition) == "" {
		missing = append(missing, "SPEECHD_MODELS_RECOGNITION")
	}
	if strings.TrimSpace(c.Models.Alignment) == "" {
		missing = append(missing, "SPEECHD_MODELS_ALIGNMENT")
	}
	if strings.TrimSpace(c.Models.Synthesis) == "" {
		missing = append(missing, "SPEECHD_MODELS_SYNTHESIS")
	}
	if strings.TrimSpace(c.Models.Quality) == "" {
		missing = append(missing, "SPEECHD_MODELS_QUALITY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if strings.TrimSpace(c.Models.QualityLabel) == "" {
		c.Models.QualityLabel = "nisqa-v2.0"
	}

	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be > 0")
	}

	inf := &c.Inference
	for _, bound := range []struct {
		name  string
		value int
	}{
		{"inference.recognition_concurrency", inf.RecognitionConcurrency},
		{"inference.alignment_concurrency", inf.AlignmentConcurrency},
		{"inference.synthesis_concurrency", inf.SynthesisConcurrency},
		{"inference.quality_concurrency", inf.QualityConcurrency},
	} {
		if bound.value < 1 {
			return fmt.Errorf("%s must be >= 1", bound.name)
		}
	}
	if inf.QueueTimeout < 0 {
		return fmt.Errorf("inference.queue_timeout must be >= 0")
	}
	if inf.MemorySampleInterval <= 0 {
		inf.MemorySampleInterval = 500 * time.Millisecond
	}

	if c.Audio.MaxUploadMB <= 0 {
		c.Audio.MaxUploadMB = 50
	}

	if c.RateLimits.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limits.requests_per_minute must be >= 0")
	}
	if c.RateLimits.RequestsPerMinute > 0 && strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("redis.url must be provided when rate limiting is enabled")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	if c.Health.CheckInterval <= 0 {
		c.Health.CheckInterval = time.Minute
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 100)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("models.quality_label", "nisqa-v2.0")

	v.SetDefault("inference.recognition_concurrency", 2)
	v.SetDefault("inference.alignment_concurrency", 1)
	v.SetDefault("inference.synthesis_concurrency", 1)
	v.SetDefault("inference.quality_concurrency", 2)
	v.SetDefault("inference.queue_timeout", "0s")
	v.SetDefault("inference.memory_sample_interval", "500ms")

	v.SetDefault("audio.max_upload_mb", 50)
	v.SetDefault("audio.ffprobe_bin", "ffprobe")
	v.SetDefault("audio.ffmpeg_bin", "ffmpeg")

	v.SetDefault("rate_limits.requests_per_minute", 0)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")

	v.SetDefault("health.check_interval", "60s")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
