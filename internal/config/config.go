package config

// Config represents the full application configuration.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	HTTP          HTTPConfig          `yaml:"http"`
	Battle        BattleConfig        `yaml:"battle"`
	Output        OutputConfig        `yaml:"output"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig configures the LLM provider used for completions and
// leak adjudication.
type ProviderConfig struct {
	// Name selects the provider: "groq" or "static".
	Name   string `yaml:"name"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"apiKey"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// BattleConfig configures battle execution.
type BattleConfig struct {
	// SecretLength is the number of characters in generated secrets.
	SecretLength int `yaml:"secretLength"`

	// MaxTokens caps the defended model's response length.
	MaxTokens int `yaml:"maxTokens"`
}

// OutputConfig configures report output.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	// Backend selects the store: "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`         // debug, info, error
	Format        string `yaml:"format"`        // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"` // Redact API keys in logs
}
