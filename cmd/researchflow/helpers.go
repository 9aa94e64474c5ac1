package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/smallnest/researchflow/config"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/research"
)

var configFlags struct {
	configPath         string
	envFile            string
	logLevel           string
	provider           string
	baseURL            string
	plannerModel       string
	researcherModel    string
	summarizerModel    string
	search             string
	extract            string
	maxSteps           int
	searchMaxResults   int
	singleStepFallback bool
	modelTimeout       time.Duration
	lookupTimeout      time.Duration
	modelRetries       int
	maxTokens          int
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&configFlags.configPath, "config", "c", "", "Path to a YAML config file")
	f.StringVar(&configFlags.envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")
	f.StringVar(&configFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	f.StringVar(&configFlags.provider, "provider", "", "Model provider: gemini, openai or anthropic")
	f.StringVar(&configFlags.baseURL, "base-url", "", "Override the model API base URL")
	f.StringVar(&configFlags.plannerModel, "planner-model", "", "Model used to plan the research steps")
	f.StringVar(&configFlags.researcherModel, "researcher-model", "", "Model used to condense each step")
	f.StringVar(&configFlags.summarizerModel, "summarizer-model", "", "Model used to write the final report")
	f.StringVar(&configFlags.search, "search", "", "Search provider: tavily or brave")
	f.StringVar(&configFlags.extract, "extract", "", "Context extraction: tavily, pages or tavily_pages")
	f.IntVar(&configFlags.maxSteps, "max-steps", 0, "Maximum number of research steps")
	f.IntVar(&configFlags.searchMaxResults, "search-max-results", 0, "Search hits per step")
	f.BoolVar(&configFlags.singleStepFallback, "single-step-fallback", false, "Research the question as one step when planning fails")
	f.DurationVar(&configFlags.modelTimeout, "model-timeout", 0, "Timeout for each model call")
	f.DurationVar(&configFlags.lookupTimeout, "lookup-timeout", 0, "Timeout for each search or extract call")
	f.IntVar(&configFlags.modelRetries, "model-retries", 0, "Retries for failed model calls")
	f.IntVar(&configFlags.maxTokens, "max-tokens", 0, "Maximum tokens per model answer (0 keeps the provider default)")
}

// loadConfig merges the config file, environment and explicitly set flags
// and validates the result for a full pipeline run.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return loadConfigWith(cmd, (*config.Config).Validate)
}

func loadConfigWith(cmd *cobra.Command, validate func(*config.Config) error) (config.Config, error) {
	if err := config.LoadDotEnv(configFlags.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configFlags.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	str := func(name, v string, dst *string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	str("log-level", configFlags.logLevel, &cfg.LogLevel)
	str("provider", configFlags.provider, &cfg.Provider)
	str("base-url", configFlags.baseURL, &cfg.BaseURL)
	str("planner-model", configFlags.plannerModel, &cfg.PlannerModel)
	str("researcher-model", configFlags.researcherModel, &cfg.ResearcherModel)
	str("summarizer-model", configFlags.summarizerModel, &cfg.SummarizerModel)
	str("search", configFlags.search, &cfg.Search)
	str("extract", configFlags.extract, &cfg.Extract)
	if flags.Changed("max-steps") {
		cfg.MaxSteps = configFlags.maxSteps
	}
	if flags.Changed("search-max-results") {
		cfg.SearchMaxResults = configFlags.searchMaxResults
	}
	if flags.Changed("single-step-fallback") {
		cfg.SingleStepFallback = configFlags.singleStepFallback
	}
	if flags.Changed("model-timeout") {
		cfg.ModelTimeout = configFlags.modelTimeout
	}
	if flags.Changed("lookup-timeout") {
		cfg.LookupTimeout = configFlags.lookupTimeout
	}
	if flags.Changed("model-retries") {
		cfg.ModelRetries = configFlags.modelRetries
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = configFlags.maxTokens
	}

	if err := validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger writes golog output to stderr so stdout carries only the report.
func newLogger(levelName string) (log.Logger, error) {
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	g := golog.New()
	g.SetOutput(os.Stderr)
	g.SetPrefix("[researchflow] ")
	logger := log.NewGologLogger(g)
	logger.SetLevel(level)
	log.SetDefaultLogger(logger)
	return logger, nil
}

// newController loads configuration and builds a ready Controller.
func newController(cmd *cobra.Command, m *metrics.Metrics) (*research.Controller, config.Config, log.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger.Debug("configuration: %+v", cfg.Redacted())

	comp, err := cfg.Components(logger)
	if err != nil {
		return nil, cfg, logger, err
	}
	ctrl, err := research.NewController(comp, cfg.Research(logger, m))
	if err != nil {
		return nil, cfg, logger, err
	}
	return ctrl, cfg, logger, nil
}
