package finetune

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

type Config struct {
	TrainingPath    string        `default:"fine_tune_chat_gpt/training_data.jsonl"`
	ModelOutputPath string        `default:"fine_tune_chat_gpt/fine_tuned_model.txt"`
	Model           string        `default:"gpt-4-0125-preview"`
	PollInterval    time.Duration `default:"60s"`
	// MaxAttempts and Deadline bound polling. Zero means unbounded.
	MaxAttempts int
	Deadline    time.Duration
}

func DefaultConfig() Config {
	var c Config
	defaults.SetDefaults(&c)
	return c
}
