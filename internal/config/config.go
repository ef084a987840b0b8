package config

// Config is the service configuration for the orchestrator.
type Config struct {
	Backends  BackendsConfig  `json:"backends" mapstructure:"backends"`
	Courses   CoursesConfig   `json:"courses" mapstructure:"courses"`
	Materials MaterialsConfig `json:"materials" mapstructure:"materials"`
	Engine    EngineConfig    `json:"engine" mapstructure:"engine"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`

	// DataDir holds the index database and logs.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// BackendsConfig configures the registered LLM backends.
type BackendsConfig struct {
	// Primary names the platform's primary backend, the one course
	// policies may disallow.
	Primary string `json:"primary" mapstructure:"primary"`

	Anthropic AnthropicConfig `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `json:"openai" mapstructure:"openai"`
	Local     LocalConfig     `json:"local" mapstructure:"local"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
}

// LocalConfig configures a self-hosted OpenAI-compatible runtime.
type LocalConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Name    string `json:"name" mapstructure:"name"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// CoursesConfig locates the course catalogue.
type CoursesConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// MaterialsConfig configures the retrieval index over course materials.
type MaterialsConfig struct {
	Dir          string           `json:"dir" mapstructure:"dir"`
	IndexPath    string           `json:"index_path" mapstructure:"index_path"`
	SyncSchedule string           `json:"sync_schedule" mapstructure:"sync_schedule"`
	Embeddings   EmbeddingsConfig `json:"embeddings" mapstructure:"embeddings"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, hash
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// EngineConfig tunes orchestration timeouts.
type EngineConfig struct {
	TurnTimeoutSeconds  int `json:"turn_timeout_seconds" mapstructure:"turn_timeout_seconds"`
	AgentTimeoutSeconds int `json:"agent_timeout_seconds" mapstructure:"agent_timeout_seconds"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Backends: BackendsConfig{
			Primary: "openai",
			Local: LocalConfig{
				Name:    "local",
				BaseURL: "http://localhost:11434/v1",
			},
		},
		Courses: CoursesConfig{
			Dir: "courses",
		},
		Materials: MaterialsConfig{
			Dir:          "materials",
			SyncSchedule: "@every 5m",
			Embeddings: EmbeddingsConfig{
				Provider:  "hash",
				Model:     "text-embedding-3-small",
				Dimension: 256,
			},
		},
		Engine: EngineConfig{
			TurnTimeoutSeconds:  120,
			AgentTimeoutSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9091",
		},
	}
}
