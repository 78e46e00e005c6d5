// Package config loads settings shared by the command line tools and the
// server: struct defaults, then an optional YAML file, then the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ellypaws/macrotune/pkg/finetune"
	"github.com/ellypaws/macrotune/pkg/llm"
)

// DefaultFile is read from the working directory when MACROTUNE_CONFIG is unset.
const DefaultFile = "macrotune.yaml"

var ErrMissingAPIKey = goerrors.Errorf("OpenAI API key is required. Set it as OPENAI_API_KEY environment variable")

type Config struct {
	// prompt variations
	SourceDir     string `yaml:"source_dir" env:"MACROTUNE_SOURCE_DIR" default:"macros_en"`
	GenDir        string `yaml:"gen_dir" env:"MACROTUNE_GEN_DIR" default:"macros_gen"`
	VariationsCSV string `yaml:"variations_csv" env:"MACROTUNE_VARIATIONS_CSV" default:"macros_gen/prompts_with_variations.csv"`
	PromptsCSV    string `yaml:"prompts_csv" env:"MACROTUNE_PROMPTS_CSV" default:"macros_gen/all_prompts.csv"`

	// training set
	TrainingDir    string `yaml:"training_dir" env:"MACROTUNE_TRAINING_DIR" default:"macros_gen"`
	TrainingPrefix string `yaml:"training_prefix" env:"MACROTUNE_TRAINING_PREFIX" default:"macro_"`
	TrainingPath   string `yaml:"training_path" env:"MACROTUNE_TRAINING_PATH" default:"fine_tune_chat_gpt/training_data.jsonl"`

	// fine-tuning
	Model               string        `yaml:"model" env:"MACROTUNE_MODEL" default:"gpt-4-0125-preview"`
	ModelOutputPath     string        `yaml:"model_output_path" env:"MACROTUNE_MODEL_OUTPUT_PATH" default:"fine_tune_chat_gpt/fine_tuned_model.txt"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds" env:"MACROTUNE_POLL_INTERVAL_SECONDS" default:"60"`
	MaxPollAttempts     int           `yaml:"max_poll_attempts" env:"MACROTUNE_MAX_POLL_ATTEMPTS"`
	PollDeadline        time.Duration `yaml:"poll_deadline" env:"MACROTUNE_POLL_DEADLINE"`

	// inference
	FineTunedModel string `yaml:"fine_tuned_model" env:"MACROTUNE_FINE_TUNED_MODEL"`
	SystemPrompt   string `yaml:"system_prompt" env:"MACROTUNE_SYSTEM_PROMPT"`

	// schema
	SchemaDir  string `yaml:"schema_dir" env:"MACROTUNE_SCHEMA_DIR" default:"macros_gen"`
	SchemaPath string `yaml:"schema_path" env:"MACROTUNE_SCHEMA_PATH" default:"macros_gen/schema.json"`

	// remote API
	APIKey            string  `yaml:"-" env:"OPENAI_API_KEY"`
	BaseURL           string  `yaml:"base_url" env:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Organization      string  `yaml:"organization" env:"OPENAI_ORG_ID"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"MACROTUNE_REQUESTS_PER_SECOND"`

	// storage and server
	RedisURL     string `yaml:"redis_url" env:"REDIS_URL"`
	DatabasePath string `yaml:"database_path" env:"MACROTUNE_DATABASE" default:"macrotune.sqlite"`
	Port         int    `yaml:"port" env:"PORT" default:"1323"`
	LogLevel     string `yaml:"log_level" env:"MACROTUNE_LOG_LEVEL" default:"info"`
}

// Default returns the configuration with only struct defaults applied.
func Default() *Config {
	c := new(Config)
	defaults.SetDefaults(c)
	return c
}

// Load reads .env, the YAML file at path (or MACROTUNE_CONFIG, or
// macrotune.yaml when present) and then the environment. An explicit path
// that does not exist is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	c := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("MACROTUNE_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides every field whose env tag is set in the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", name, value, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(strings.TrimSpace(value))
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// Key returns the API key or ErrMissingAPIKey.
func (c *Config) Key() (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	return c.APIKey, nil
}

// LLM builds the client configuration. A missing key is reported here, before
// any work starts.
func (c *Config) LLM() (llm.Config, error) {
	key, err := c.Key()
	if err != nil {
		return llm.Config{}, err
	}
	host, err := llm.ParseHost(c.BaseURL)
	if err != nil {
		return llm.Config{}, err
	}
	config := llm.Config{
		Host:         host,
		APIKey:       key,
		Organization: c.Organization,
	}
	if c.RequestsPerSecond > 0 {
		config.Limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	return config, nil
}

// Client builds an API client from LLM.
func (c *Config) Client() (*llm.Client, error) {
	config, err := c.LLM()
	if err != nil {
		return nil, err
	}
	return llm.NewClient(config)
}

func (c *Config) FineTune() finetune.Config {
	config := finetune.DefaultConfig()
	config.TrainingPath = c.TrainingPath
	config.ModelOutputPath = c.ModelOutputPath
	config.Model = c.Model
	if c.PollIntervalSeconds > 0 {
		config.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second
	}
	config.MaxAttempts = c.MaxPollAttempts
	config.Deadline = c.PollDeadline
	return config
}

// ModelName returns the configured fine-tuned model, falling back to the name
// saved by the last successful fine-tuning run.
func (c *Config) ModelName() (string, error) {
	if c.FineTunedModel != "" {
		return c.FineTunedModel, nil
	}
	b, err := os.ReadFile(c.ModelOutputPath)
	if err != nil {
		return "", fmt.Errorf("no fine-tuned model configured and %s is unreadable: %w", c.ModelOutputPath, err)
	}
	name := strings.TrimSpace(string(b))
	if name == "" {
		return "", fmt.Errorf("%s is empty", c.ModelOutputPath)
	}
	return name, nil
}
