package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/idea-forge/internal/config"
	"github.com/danielpatrickdp/idea-forge/internal/orchestrator"
	"github.com/danielpatrickdp/idea-forge/internal/textgen"
)

// ideaFlags are the per-run overrides of the idea and replay commands.
type ideaFlags struct {
	genre        string
	tone         string
	themes       []string
	output       string
	outputDir    string
	db           string
	html         bool
	mock         bool
	provider     string
	model        string
	pitches      int
	threshold    float64
	maxRevisions int
	record       string
}

func (f *ideaFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.genre, "genre", "", "subgenre to write in (drawn from the catalog when empty)")
	fl.StringVar(&f.tone, "tone", "", "tone hint")
	fl.StringSliceVar(&f.themes, "theme", nil, "theme hint, repeatable")
	fl.StringVarP(&f.output, "output", "o", "", "write the document to this exact path")
	fl.StringVar(&f.outputDir, "output-dir", "", "base directory for derived document paths")
	fl.StringVar(&f.db, "db", "", "run history database (empty keeps the configured one)")
	fl.BoolVar(&f.html, "html", false, "also write an HTML rendition")
	fl.IntVar(&f.pitches, "pitches", 0, "number of pitches to draft")
	fl.Float64Var(&f.threshold, "threshold", 0, "composite score a pitch must reach")
	fl.IntVar(&f.maxRevisions, "max-revisions", -1, "revision budget per lineage")
}

// apply layers explicit flags over the resolved config.
func (f *ideaFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.db != "" {
		cfg.DBPath = f.db
	}
	if f.html {
		cfg.RenderHTML = true
	}
	if f.mock {
		cfg.Provider = config.ProviderMock
	} else if f.provider != "" {
		cfg.Provider = config.Provider(f.provider)
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if fl.Changed("pitches") {
		cfg.PitchCount = f.pitches
		if cfg.MinPitches > cfg.PitchCount {
			cfg.MinPitches = cfg.PitchCount
		}
	}
	if fl.Changed("threshold") {
		cfg.Threshold = f.threshold
	}
	if fl.Changed("max-revisions") {
		cfg.MaxRevisions = f.maxRevisions
	}
}

func (f *ideaFlags) request() orchestrator.Request {
	return orchestrator.Request{Genre: f.genre, Tone: f.tone, Themes: f.themes, Target: f.output}
}

// IdeaCmd runs one generation pass and writes the winning idea.
func IdeaCmd(g *globalFlags) *cobra.Command {
	f := &ideaFlags{}
	cmd := &cobra.Command{
		Use:   "idea",
		Short: "Generate one story idea document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)

			s, err := openSession(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			svc, closeSvc, err := buildService(cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			var rec *textgen.Recording
			if f.record != "" {
				rec = textgen.NewRecording(svc)
				svc = rec
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, runErr := s.facilitator(svc).Run(ctx, f.request())

			if rec != nil {
				desc := fmt.Sprintf("run %s, genre %q", res.Report.RunID, res.Report.Genre.Genre)
				if err := textgen.SaveFixture(f.record, rec.Fixture(desc)); err != nil {
					s.log.Error("save fixture", "path", f.record, "error", err)
				} else {
					s.log.Info("fixture saved", "path", f.record)
				}
			}
			printSummary(cmd.OutOrStdout(), res, runErr)
			return runErr
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.mock, "mock", false, "use the offline mock provider")
	cmd.Flags().StringVar(&f.provider, "provider", "", "openai, grpc or mock")
	cmd.Flags().StringVar(&f.model, "model", "", "model name for the openai provider")
	cmd.Flags().StringVar(&f.record, "record", "", "save every text-generation exchange to this fixture file")
	return cmd
}

// ReplayCmd reruns a recorded fixture without touching any provider.
func ReplayCmd(g *globalFlags) *cobra.Command {
	f := &ideaFlags{}
	cmd := &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Run the pipeline against a recorded fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := textgen.LoadFixture(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			cfg.Provider = config.ProviderMock

			s, err := openSession(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			replay := textgen.NewReplayService(fx)
			s.log.Info("replaying fixture", "path", args[0], "description", fx.Description, "exchanges", len(fx.Exchanges))
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, runErr := s.facilitator(replay).Run(ctx, f.request())

			out := cmd.OutOrStdout()
			printSummary(out, res, runErr)
			for _, role := range textgen.Roles {
				if n := replay.Remaining(role); n > 0 {
					fmt.Fprintf(out, "unused %s exchanges: %d\n", role, n)
				}
			}
			return runErr
		},
	}
	f.register(cmd)
	return cmd
}
