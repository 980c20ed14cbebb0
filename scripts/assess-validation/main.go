// assess-validation runs a corpus of SQL statements through the full
// validation pipeline and reports per-case scores. Correction attempts go
// through the mock generator, so it needs no database and no model endpoint;
// it is safe to run anywhere to sanity-check threshold and weight tuning
// before deploying a config change.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/llm"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/services"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/validators"
)

// Case is one corpus entry with the outcome we expect from the pipeline.
type Case struct {
	Name        string                 `yaml:"name"`
	SQL         string                 `yaml:"sql"`
	Question    string                 `yaml:"question"`
	Level       models.ValidationLevel `yaml:"level"`
	ExpectValid bool                   `yaml:"expect_valid"`
}

var defaultCorpus = []Case{
	{
		Name:        "clean filtered select",
		SQL:         "SELECT name FROM players WHERE brand_id = 1",
		Question:    "list player names",
		Level:       models.LevelStandard,
		ExpectValid: true,
	},
	{
		Name:        "aggregate with glossary term",
		SQL:         "SELECT SUM(amount) FROM deposits",
		Question:    "total deposits",
		Level:       models.LevelStandard,
		ExpectValid: true,
	},
	{
		Name:        "destructive statement",
		SQL:         "DELETE FROM players WHERE id = 1",
		Question:    "remove a player",
		Level:       models.LevelComprehensive,
		ExpectValid: false,
	},
	{
		Name:        "stacked statements",
		SQL:         "SELECT 1; DROP TABLE players",
		Question:    "count players",
		Level:       models.LevelBasic,
		ExpectValid: false,
	},
	{
		Name:        "unknown table",
		SQL:         "SELECT name FROM playerz WHERE brand_id = 1",
		Question:    "list player names",
		Level:       models.LevelComprehensive,
		ExpectValid: false,
	},
	{
		Name:        "missing required filter",
		SQL:         "SELECT name FROM players",
		Question:    "list player names",
		Level:       models.LevelStrict,
		ExpectValid: false,
	},
	{
		Name:        "sensitive column at strict",
		SQL:         "SELECT email FROM players WHERE brand_id = 1",
		Question:    "player emails",
		Level:       models.LevelStrict,
		ExpectValid: false,
	},
}

func main() {
	corpusPath := flag.String("corpus", "", "Corpus YAML (built-in corpus when empty)")
	schemaPath := flag.String("schema", "", "Schema snapshot YAML (built-in fixture when empty)")
	glossaryPath := flag.String("glossary", "", "Glossary YAML (built-in fixture when empty)")
	policyPath := flag.String("policy", "", "Access policy YAML (built-in fixture when empty)")
	selfCorrect := flag.Bool("self-correct", true, "Run failing cases through the mock correction loop")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer logger.Sync()

	corpus := defaultCorpus
	if *corpusPath != "" {
		loaded, err := loadCorpus(*corpusPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load corpus: %v\n", err)
			os.Exit(1)
		}
		corpus = loaded
	}

	snapshot, glossary, policy, err := loadFixtures(*schemaPath, *glossaryPath, *policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load fixtures: %v\n", err)
		os.Exit(1)
	}

	pipeline, collector := buildPipeline(snapshot, glossary, policy, logger)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Validation Pipeline Assessment")
	fmt.Printf("Corpus: %d cases, %d tables in snapshot\n", len(corpus), len(snapshot.Tables))
	fmt.Println(strings.Repeat("=", 80))

	ctx := context.Background()
	failures := 0
	for _, c := range corpus {
		fmt.Printf("\n%s\n", strings.Repeat("-", 80))
		fmt.Printf("Case: %s (%s)\n", c.Name, c.Level)
		fmt.Printf("SQL:  %s\n", c.SQL)

		result, err := pipeline.ValidateQuery(ctx, &models.ValidationRequest{
			RequestID:            uuid.New(),
			SQL:                  c.SQL,
			OriginalQuery:        c.Question,
			Level:                c.Level,
			EnableSelfCorrection: *selfCorrect,
		})
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			failures++
			continue
		}

		status := "✓ PASS"
		if result.IsValid != c.ExpectValid {
			status = "✗ FAIL"
			failures++
		}
		fmt.Printf("%s  valid=%v (expected %v)  score=%.2f  duration=%s\n",
			status, result.IsValid, c.ExpectValid, result.OverallScore, result.Duration)

		for _, stage := range result.Stages {
			if !stage.Executed {
				fmt.Printf("  %-15s skipped: %s\n", stage.Type, stage.SkipReason)
				continue
			}
			fmt.Printf("  %-15s score=%.2f issues=%d\n", stage.Type, stage.Score, len(stage.Issues))
			for _, issue := range stage.Issues {
				fmt.Printf("    [%s/%s] %s\n", issue.Severity, issue.Category, issue.Message)
			}
		}
		for _, attempt := range result.CorrectionHistory {
			fmt.Printf("  correction #%d strategy=%s successful=%v\n",
				attempt.AttemptNumber, attempt.Strategy, attempt.WasSuccessful)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Println("SUMMARY")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))
	fmt.Printf("%d/%d cases matched expectations\n\n", len(corpus)-failures, len(corpus))

	metricsJSON, _ := json.MarshalIndent(collector.Snapshot(), "", "  ")
	fmt.Println(string(metricsJSON))

	if failures > 0 {
		fmt.Println("\nSome cases failed.")
		os.Exit(1)
	}
	fmt.Println("\nAll cases passed!")
}

func buildPipeline(snapshot *schema.Snapshot, glossary *schema.Glossary, policy *schema.AccessPolicy, logger *zap.Logger) (services.QueryValidationService, *services.MetricsCollector) {
	cfg := defaultValidationConfig()
	provider := schema.NewStaticProvider(snapshot)

	orchestrator := services.NewValidationOrchestrator(
		cfg,
		validators.NewSecurityValidator(cfg, logger),
		validators.NewSemanticValidator(glossary, cfg, logger),
		validators.NewSchemaComplianceValidator(logger),
		validators.NewBusinessLogicValidator(policy, cfg, logger),
		provider,
		logger,
	)

	correctionCfg := &config.CorrectionConfig{
		Enabled:                 true,
		MaxAttempts:             3,
		MinImprovementThreshold: 0.05,
		TimeoutSeconds:          int(time.Minute.Seconds()),
		Strategies: []models.CorrectionStrategy{
			models.StrategySemantic, models.StrategySchema, models.StrategyBusinessLogic,
		},
	}
	corrections := services.NewSelfCorrectionEngine(
		llm.NewMockCorrector(), correctionCfg.ToConfiguration(), orchestrator, provider, logger)

	dryRunCfg := &config.DryRunConfig{Enabled: false}
	collector := services.NewMetricsCollector(logger)

	pipeline := services.NewQueryValidationService(
		orchestrator,
		corrections,
		services.NewDryRunExecutor(nil, dryRunCfg, logger),
		collector,
		correctionCfg,
		dryRunCfg,
		logger,
	)
	return pipeline, collector
}

func loadCorpus(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var corpus []Case
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, err
	}
	return corpus, nil
}

func loadFixtures(schemaPath, glossaryPath, policyPath string) (*schema.Snapshot, *schema.Glossary, *schema.AccessPolicy, error) {
	snapshot := fixtureSnapshot()
	if schemaPath != "" {
		loaded, err := schema.LoadSnapshot(schemaPath)
		if err != nil {
			return nil, nil, nil, err
		}
		snapshot = loaded
	}

	glossary := fixtureGlossary()
	if glossaryPath != "" {
		loaded, err := schema.LoadGlossary(glossaryPath)
		if err != nil {
			return nil, nil, nil, err
		}
		glossary = loaded
	}

	policy := fixturePolicy()
	if policyPath != "" {
		loaded, err := schema.LoadPolicy(policyPath)
		if err != nil {
			return nil, nil, nil, err
		}
		policy = loaded
	}

	return snapshot, glossary, policy, nil
}

func defaultValidationConfig() *config.ValidationConfig {
	return &config.ValidationConfig{
		DefaultLevel:              "standard",
		BasicThreshold:            0.50,
		StandardThreshold:         0.60,
		ComprehensiveThreshold:    0.75,
		StrictThreshold:           0.85,
		SecurityWeight:            0.30,
		SemanticWeight:            0.25,
		SchemaWeight:              0.25,
		BusinessWeight:            0.20,
		SemanticStandardThreshold: 0.60,
		SemanticStrictThreshold:   0.75,
		AccessWeight:              0.40,
		SensitivityWeight:         0.40,
		AggregationWeight:         0.20,
		SecurityWarningStep:       0.15,
	}
}

func fixtureSnapshot() *schema.Snapshot {
	return schema.NewSnapshot([]schema.Table{
		{
			Name: "players",
			Columns: []schema.Column{
				{Name: "id", DataType: "bigint"},
				{Name: "brand_id", DataType: "int"},
				{Name: "name", DataType: "varchar"},
				{Name: "email", DataType: "varchar", IsSensitive: true},
			},
			PrimaryKey:      []string{"id"},
			RequiredFilters: []string{"brand_id"},
		},
		{
			Name: "deposits",
			Columns: []schema.Column{
				{Name: "id", DataType: "bigint"},
				{Name: "player_id", DataType: "bigint"},
				{Name: "amount", DataType: "numeric"},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []schema.ForeignKey{
				{Columns: []string{"player_id"}, RefTable: "players", RefColumns: []string{"id"}},
			},
		},
	})
}

func fixtureGlossary() *schema.Glossary {
	return &schema.Glossary{
		Terms: []schema.Term{
			{Name: "player", Synonyms: []string{"customer"}, Tables: []string{"players"}},
			{Name: "deposits", Tables: []string{"deposits"}, Columns: []string{"amount"}, Aggregation: "SUM"},
		},
	}
}

func fixturePolicy() *schema.AccessPolicy {
	return &schema.AccessPolicy{
		DefaultRole: "analyst",
		Roles: map[string]schema.RolePolicy{
			"analyst": {},
		},
	}
}
