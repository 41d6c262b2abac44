// Command grok is the terminal front-end for the grokcode engine: an
// interactive chat loop over the foreground controller with permission
// mode cycling, transcript save/load and plugin agents.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	grokcode "github.com/nevindra/grokcode"
	"github.com/nevindra/grokcode/internal/config"
	"github.com/nevindra/grokcode/observer"
	"github.com/nevindra/grokcode/plugin"
	"github.com/nevindra/grokcode/provider/openaicompat"
	"github.com/nevindra/grokcode/store/postgres"
	"github.com/nevindra/grokcode/store/sqlite"
	"github.com/nevindra/grokcode/toolkit"
	"github.com/nevindra/grokcode/tools/shell"
)

const (
	exitOK        = 0
	exitFatal     = 1
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var modelFlag, baseURLFlag string
	root := &cobra.Command{
		Use:           "grok",
		Short:         "grokCode - AI coding assistant for your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chat(cmd.Context(), modelFlag, baseURLFlag)
		},
	}
	root.Flags().StringVar(&modelFlag, "model", "", "model override")
	root.Flags().StringVar(&baseURLFlag, "base-url", "", "API base URL override")

	if err := root.Execute(); err != nil {
		if err == errInterrupted {
			return exitInterrupt
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFatal
	}
	return exitOK
}

// buildApp wires the engine for the current working directory.
func buildApp(ctx context.Context, modelFlag, baseURLFlag string) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg := config.Load(cwd)
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}
	if baseURLFlag != "" {
		cfg.LLM.BaseURL = baseURLFlag
	}
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("XAI_API_KEY not found. Set it as an environment variable or in .grok/config.toml")
	}

	session := grokcode.NewSession(cwd)
	if mode := grokcode.ApprovalMode(cfg.Perms.DefaultMode); mode == grokcode.ModeAuto || mode == grokcode.ModeManual {
		session.Perms.SetMode(mode)
	}

	var llm grokcode.Provider = openaicompat.NewProvider(
		cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
		openaicompat.WithMaxRetries(cfg.LLM.MaxRetries))
	llm = grokcode.WithRetry(llm)
	if cfg.LLM.RPM > 0 {
		llm = grokcode.WithRateLimit(llm, grokcode.RPM(cfg.LLM.RPM))
	}

	a := &app{session: session, cfg: cfg, provider: llm}

	if cfg.Tracing.Enabled {
		shutdown, err := observer.Init(ctx)
		if err == nil {
			a.tracer = observer.NewTracer()
			a.shutdownTracing = shutdown
		}
	}

	plugins := plugin.NewLoader(
		filepath.Join(session.GrokDir(), "plugins"),
		filepath.Join(session.GrokDir(), "agents"),
	).LoadAll()
	a.plugins = plugin.NewRegistry(plugins)

	var shellRunner shell.Runner
	if cfg.Shell.SandboxImage != "" {
		shellRunner = shell.NewDockerRunner(cfg.Shell.SandboxImage, cwd)
	}
	a.input = newTerminalInput()
	a.registry = toolkit.New(session, toolkit.Options{
		InputHandler: a.input,
		ShellRunner:  shellRunner,
	})

	a.runner = grokcode.NewAgentRunner(llm, a.registry, session,
		grokcode.WithAgentLookup(func(name string) (grokcode.AgentDefinition, bool) {
			def, ok := a.plugins.Agent(name)
			if !ok {
				return grokcode.AgentDefinition{}, false
			}
			return grokcode.AgentDefinition{
				Name:        def.Name,
				Description: def.Description,
				Prompt:      def.Prompt,
				Tools:       def.Tools,
			}, true
		}),
		grokcode.WithRunnerStatus(a.showStatus),
		grokcode.WithRunnerTracer(a.tracer),
		// Late-bound: the controller is constructed a few lines below.
		grokcode.WithRunnerCancelCheck(func() bool {
			return a.ctrl != nil && a.ctrl.Interrupted()
		}),
	)
	grokcode.RegisterAgentTools(a.registry, a.runner)

	a.history, a.threadID = openHistory(ctx, cfg)

	ctrlOpts := []grokcode.ControllerOption{
		grokcode.WithContentSink(func(chunk string) { fmt.Print(chunk) }),
		grokcode.WithStatusSink(a.showStatus),
		grokcode.WithTemperature(cfg.LLM.Temperature),
		grokcode.WithControllerTracer(a.tracer),
	}
	if a.history != nil {
		ctrlOpts = append(ctrlOpts, grokcode.WithHistory(a.history, a.threadID))
	}
	a.ctrl = grokcode.NewController(llm, a.registry, session, a.agentInfos, ctrlOpts...)

	return a, nil
}

// openHistory opens the configured journal backend, creating the session
// thread. A broken backend disables journaling rather than aborting.
func openHistory(ctx context.Context, cfg config.Config) (grokcode.HistoryStore, string) {
	var store grokcode.HistoryStore
	switch cfg.History.Backend {
	case "sqlite":
		store = sqlite.New(cfg.History.Path)
	case "postgres":
		pg, err := postgres.Connect(ctx, cfg.History.DSN)
		if err != nil {
			return nil, ""
		}
		store = pg
	default:
		return nil, ""
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, ""
	}
	threadID := grokcode.NewID()
	if err := store.CreateThread(ctx, grokcode.Thread{ID: threadID}); err != nil {
		store.Close()
		return nil, ""
	}
	return store, threadID
}
