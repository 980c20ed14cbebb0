package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

// Config holds all configuration for sqlguard-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, datasource passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Validation pipeline tuning
	Validation ValidationConfig `yaml:"validation"`

	// Self-correction loop settings
	Correction CorrectionConfig `yaml:"correction"`

	// Dry-run execution limits
	DryRun DryRunConfig `yaml:"dry_run"`

	// AI model endpoint used for correction generation
	AI AIConfig `yaml:"ai"`

	// Prometheus metrics endpoint
	Metrics MetricsConfig `yaml:"metrics"`

	// Target datasource for schema discovery and dry-run execution
	Datasource DatasourceConfig `yaml:"datasource"`

	// Business metadata documents (schema snapshot, glossary, access policy)
	Documents DocumentsConfig `yaml:"documents"`
}

// ValidationConfig holds per-level thresholds and stage weights for the
// validation pipeline. Weights must sum to 1.0 across the four scored stages.
type ValidationConfig struct {
	DefaultLevel string `yaml:"default_level" env:"VALIDATION_DEFAULT_LEVEL" env-default:"standard"`

	// Minimum overall score required per validation level.
	BasicThreshold         float64 `yaml:"basic_threshold" env:"VALIDATION_BASIC_THRESHOLD" env-default:"0.50"`
	StandardThreshold      float64 `yaml:"standard_threshold" env:"VALIDATION_STANDARD_THRESHOLD" env-default:"0.60"`
	ComprehensiveThreshold float64 `yaml:"comprehensive_threshold" env:"VALIDATION_COMPREHENSIVE_THRESHOLD" env-default:"0.75"`
	StrictThreshold        float64 `yaml:"strict_threshold" env:"VALIDATION_STRICT_THRESHOLD" env-default:"0.85"`

	// Relative weight of each stage in the overall score.
	SecurityWeight float64 `yaml:"security_weight" env:"VALIDATION_SECURITY_WEIGHT" env-default:"0.30"`
	SemanticWeight float64 `yaml:"semantic_weight" env:"VALIDATION_SEMANTIC_WEIGHT" env-default:"0.25"`
	SchemaWeight   float64 `yaml:"schema_weight" env:"VALIDATION_SCHEMA_WEIGHT" env-default:"0.25"`
	BusinessWeight float64 `yaml:"business_weight" env:"VALIDATION_BUSINESS_WEIGHT" env-default:"0.20"`

	// Minimum semantic alignment score before the semantic stage reports
	// the query as misaligned with the question.
	SemanticStandardThreshold float64 `yaml:"semantic_standard_threshold" env:"VALIDATION_SEMANTIC_STANDARD_THRESHOLD" env-default:"0.60"`
	SemanticStrictThreshold   float64 `yaml:"semantic_strict_threshold" env:"VALIDATION_SEMANTIC_STRICT_THRESHOLD" env-default:"0.75"`

	// Axis weights inside the business logic stage.
	AccessWeight      float64 `yaml:"access_weight" env:"VALIDATION_ACCESS_WEIGHT" env-default:"0.40"`
	SensitivityWeight float64 `yaml:"sensitivity_weight" env:"VALIDATION_SENSITIVITY_WEIGHT" env-default:"0.40"`
	AggregationWeight float64 `yaml:"aggregation_weight" env:"VALIDATION_AGGREGATION_WEIGHT" env-default:"0.20"`

	// Score deduction per non-critical security warning.
	SecurityWarningStep float64 `yaml:"security_warning_step" env:"VALIDATION_SECURITY_WARNING_STEP" env-default:"0.15"`
}

// ThresholdFor returns the minimum passing overall score for a level.
func (c *ValidationConfig) ThresholdFor(level models.ValidationLevel) float64 {
	switch level {
	case models.LevelBasic:
		return c.BasicThreshold
	case models.LevelComprehensive:
		return c.ComprehensiveThreshold
	case models.LevelStrict:
		return c.StrictThreshold
	default:
		return c.StandardThreshold
	}
}

// StageWeight returns the weight of a validation stage in the overall score.
// Dry run is advisory and carries no weight.
func (c *ValidationConfig) StageWeight(t models.ValidationType) float64 {
	switch t {
	case models.TypeSecurity:
		return c.SecurityWeight
	case models.TypeSemantic:
		return c.SemanticWeight
	case models.TypeSchema:
		return c.SchemaWeight
	case models.TypeBusinessLogic:
		return c.BusinessWeight
	default:
		return 0
	}
}

// SemanticThresholdFor returns the alignment threshold applied by the
// semantic stage at a given level. Basic never runs the semantic stage, so
// it shares the standard threshold.
func (c *ValidationConfig) SemanticThresholdFor(level models.ValidationLevel) float64 {
	switch level {
	case models.LevelComprehensive, models.LevelStrict:
		return c.SemanticStrictThreshold
	default:
		return c.SemanticStandardThreshold
	}
}

// CorrectionConfig holds self-correction loop settings.
type CorrectionConfig struct {
	Enabled                 bool    `yaml:"enabled" env:"CORRECTION_ENABLED" env-default:"true"`
	MaxAttempts             int     `yaml:"max_attempts" env:"CORRECTION_MAX_ATTEMPTS" env-default:"3"`
	MinImprovementThreshold float64 `yaml:"min_improvement_threshold" env:"CORRECTION_MIN_IMPROVEMENT_THRESHOLD" env-default:"0.05"`
	TimeoutSeconds          int     `yaml:"timeout_seconds" env:"CORRECTION_TIMEOUT_SECONDS" env-default:"60"`

	// StrategiesStr is a comma-separated ordered list of correction
	// strategies to rotate through.
	StrategiesStr string `yaml:"strategies" env:"CORRECTION_STRATEGIES" env-default:"semantic,schema,business_logic"`

	// Strategies is parsed from StrategiesStr (not from config file).
	Strategies []models.CorrectionStrategy `yaml:"-"`
}

// ToConfiguration converts the loaded settings into the runtime correction
// configuration consumed by the correction engine.
func (c *CorrectionConfig) ToConfiguration() models.SelfCorrectionConfiguration {
	return models.SelfCorrectionConfiguration{
		MaxCorrectionAttempts:   c.MaxAttempts,
		MinImprovementThreshold: c.MinImprovementThreshold,
		CorrectionTimeout:       time.Duration(c.TimeoutSeconds) * time.Second,
		CorrectionStrategies:    c.Strategies,
	}
}

// DryRunConfig holds dry-run execution limits.
type DryRunConfig struct {
	Enabled              bool `yaml:"enabled" env:"DRYRUN_ENABLED" env-default:"true"`
	MaxRows              int  `yaml:"max_rows" env:"DRYRUN_MAX_ROWS" env-default:"1000"`
	MaxExecutionTimeSecs int  `yaml:"max_execution_time_seconds" env:"DRYRUN_MAX_EXECUTION_TIME_SECONDS" env-default:"5"`
}

// MaxExecutionTime returns the per-query dry-run deadline.
func (c *DryRunConfig) MaxExecutionTime() time.Duration {
	return time.Duration(c.MaxExecutionTimeSecs) * time.Second
}

// AIConfig holds the model endpoint used to generate SQL corrections.
type AIConfig struct {
	// Provider selects the client implementation: "openai", "anthropic",
	// or "mock" for offline runs.
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	// APIKey must come from the environment.
	APIKey      string  `yaml:"-" env:"AI_API_KEY"`
	MaxTokens   int     `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"1024"`
	Temperature float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.0"`
}

// MetricsConfig holds the Prometheus exposition endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
	Addr    string `yaml:"addr" env:"METRICS_ADDR" env-default:":9090"`
}

// DatasourceConfig holds the connection settings for the target database
// used for schema discovery and dry-run execution.
type DatasourceConfig struct {
	// Driver selects the adapter: "postgres" or "mssql". Empty disables
	// live schema discovery and dry runs (documents-only mode).
	Driver   string `yaml:"driver" env:"DATASOURCE_DRIVER" env-default:""`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"DATASOURCE_MAX_CONNS" env-default:"5"`
}

// ConnectionString returns a driver-appropriate connection string.
func (c *DatasourceConfig) ConnectionString() string {
	if c.Driver == "mssql" {
		return fmt.Sprintf(
			"server=%s;port=%d;user id=%s;password=%s;database=%s",
			c.Host, c.Port, c.User, c.Password, c.Database,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DocumentsConfig holds paths to the business metadata documents loaded at
// startup.
type DocumentsConfig struct {
	SchemaPath   string `yaml:"schema_path" env:"DOCUMENTS_SCHEMA_PATH" env-default:""`
	GlossaryPath string `yaml:"glossary_path" env:"DOCUMENTS_GLOSSARY_PATH" env-default:""`
	PolicyPath   string `yaml:"policy_path" env:"DOCUMENTS_POLICY_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (AI_API_KEY, DATASOURCE_PASSWORD) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	strategies, err := parseStrategies(c.Correction.StrategiesStr)
	if err != nil {
		return err
	}
	c.Correction.Strategies = strategies
	return nil
}

func (c *Config) validate() error {
	if _, err := models.ParseValidationLevel(c.Validation.DefaultLevel); err != nil {
		return fmt.Errorf("default_level: %w", err)
	}

	sum := c.Validation.SecurityWeight + c.Validation.SemanticWeight +
		c.Validation.SchemaWeight + c.Validation.BusinessWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("stage weights must sum to 1.0, got %.2f", sum)
	}

	axisSum := c.Validation.AccessWeight + c.Validation.SensitivityWeight + c.Validation.AggregationWeight
	if axisSum < 0.99 || axisSum > 1.01 {
		return fmt.Errorf("business axis weights must sum to 1.0, got %.2f", axisSum)
	}

	for name, v := range map[string]float64{
		"basic_threshold":         c.Validation.BasicThreshold,
		"standard_threshold":      c.Validation.StandardThreshold,
		"comprehensive_threshold": c.Validation.ComprehensiveThreshold,
		"strict_threshold":        c.Validation.StrictThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %.2f", name, v)
		}
	}

	if c.Correction.Enabled {
		runtime := c.Correction.ToConfiguration()
		if err := runtime.Validate(); err != nil {
			return fmt.Errorf("correction: %w", err)
		}
	}

	if c.Datasource.Driver != "" && c.Datasource.Driver != "postgres" && c.Datasource.Driver != "mssql" {
		return fmt.Errorf("unsupported datasource driver %q", c.Datasource.Driver)
	}

	return nil
}

// parseStrategies parses the comma-separated strategy list, preserving order.
func parseStrategies(value string) ([]models.CorrectionStrategy, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	strategies := make([]models.CorrectionStrategy, 0, len(parts))
	for _, part := range parts {
		s, err := models.ParseCorrectionStrategy(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
