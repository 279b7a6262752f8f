package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/danielpatrickdp/idea-forge/internal/artifact"
	"github.com/danielpatrickdp/idea-forge/internal/config"
	"github.com/danielpatrickdp/idea-forge/internal/history"
	"github.com/danielpatrickdp/idea-forge/internal/logging"
	"github.com/danielpatrickdp/idea-forge/internal/orchestrator"
	"github.com/danielpatrickdp/idea-forge/internal/roles"
	"github.com/danielpatrickdp/idea-forge/internal/textgen"
)

// #region config

func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFileSet {
		cfg.LogFile = g.logFile
	}
	return cfg, nil
}

func settingsFrom(cfg config.Config) orchestrator.Settings {
	return orchestrator.Settings{
		PitchCount:   cfg.PitchCount,
		MinPitches:   cfg.MinPitches,
		Threshold:    cfg.Threshold,
		MaxRevisions: cfg.MaxRevisions,
		MaxRetries:   cfg.MaxRetries,
		Concurrency:  cfg.Concurrency,
		RunTimeout:   cfg.RunTimeout,
	}
}

// #endregion

// #region service

// buildService returns the configured text-generation backend wrapped in the
// request limiter. The closer releases any held connection.
func buildService(cfg config.Config) (textgen.Service, func() error, error) {
	noop := func() error { return nil }
	var svc textgen.Service
	closer := noop

	switch cfg.Provider {
	case config.ProviderMock:
		svc = textgen.MockService{}
	case config.ProviderGRPC:
		g, err := textgen.NewGRPCService(cfg.GRPCAddr)
		if err != nil {
			return nil, noop, fmt.Errorf("connect text service at %s: %w", cfg.GRPCAddr, err)
		}
		svc, closer = g, g.Close
	case config.ProviderOpenAI:
		o, err := textgen.NewOpenAIService(textgen.OpenAISettings{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey(),
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		svc = o
	default:
		return nil, noop, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return textgen.NewLimited(svc, cfg.RequestsPerMinute), closer, nil
}

// #endregion

// #region session

// session holds everything one command invocation opened.
type session struct {
	cfg     config.Config
	log     *slog.Logger
	history *history.Store
	closers []func() error
}

func openSession(cfg config.Config, console io.Writer) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, closeLog, err := logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closers: []func() error{closeLog}}
	if cfg.DBPath != "" {
		h, err := history.NewStore(cfg.DBPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		s.history = h
		s.closers = append(s.closers, h.Close)
	}
	return s, nil
}

func (s *session) facilitator(svc textgen.Service) *orchestrator.Facilitator {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.log),
		orchestrator.WithWriter(artifact.Writer{BaseDir: s.cfg.OutputDir, RenderHTML: s.cfg.RenderHTML}),
	}
	if s.history != nil {
		opts = append(opts, orchestrator.WithHistory(s.history))
	}
	return orchestrator.New(roles.NewPanel(svc, s.log), settingsFrom(s.cfg), opts...)
}

// Close releases resources in reverse order of opening.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// #endregion
