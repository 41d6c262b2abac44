package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	grokcode "github.com/nevindra/grokcode"
	"github.com/nevindra/grokcode/internal/config"
	"github.com/nevindra/grokcode/plugin"
)

// errInterrupted propagates a double Ctrl+C up to main for exit code 130.
var errInterrupted = errors.New("interrupted")

// app aggregates the wired engine components for the chat loop.
type app struct {
	cfg      config.Config
	session  *grokcode.Session
	provider grokcode.Provider
	registry *grokcode.Registry
	runner   *grokcode.AgentRunner
	ctrl     *grokcode.Controller
	plugins  *plugin.Registry
	input    *terminalInput
	tracer   grokcode.Tracer
	history  grokcode.HistoryStore
	threadID string

	shutdownTracing func(context.Context) error
}

// showStatus renders a transient status line.
func (a *app) showStatus(status string) {
	fmt.Printf("\r\033[2K… %s", status)
}

// clearStatus erases the transient status line.
func (a *app) clearStatus() {
	fmt.Print("\r\033[2K")
}

// agentInfos feeds the available-agents prompt section.
func (a *app) agentInfos() []grokcode.AgentInfo {
	var out []grokcode.AgentInfo
	for _, ag := range a.plugins.Agents() {
		out = append(out, grokcode.AgentInfo{Name: ag.Name, Description: ag.Description})
	}
	return out
}

// terminalInput implements grokcode.InputHandler on the terminal.
type terminalInput struct{}

func newTerminalInput() *terminalInput {
	return &terminalInput{}
}

func (t *terminalInput) RequestInput(_ context.Context, req grokcode.InputRequest) (grokcode.InputResponse, error) {
	fmt.Println()
	fmt.Println(req.Question)
	if len(req.Options) > 0 {
		fmt.Println("[" + strings.Join(req.Options, " / ") + "]")
	}
	fmt.Print("> ")
	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return grokcode.InputResponse{}, err
	}
	return grokcode.InputResponse{Value: strings.TrimSpace(line)}, nil
}

// chat runs the interactive loop until /exit or a double interrupt.
func chat(ctx context.Context, modelFlag, baseURLFlag string) error {
	a, err := buildApp(ctx, modelFlag, baseURLFlag)
	if err != nil {
		return err
	}
	defer a.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	a.welcome()

	// First Ctrl+C interrupts the running turn; a second within two
	// seconds exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	var lastInterrupt time.Time
	interruptExit := make(chan struct{})
	go func() {
		for range sigCh {
			now := time.Now()
			if now.Sub(lastInterrupt) < 2*time.Second {
				close(interruptExit)
				return
			}
			lastInterrupt = now
			a.ctrl.Interrupt()
			a.runner.CancelCurrent()
			fmt.Println("\nPress Ctrl+C again to exit")
		}
	}()

	for {
		select {
		case <-interruptExit:
			return errInterrupted
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF on Ctrl+D
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, err := a.slashCommand(ctx, input)
			if err != nil {
				fmt.Println("Error:", err)
			}
			if done {
				return nil
			}
			continue
		}

		if a.ctrl.Enqueue(input) {
			fmt.Println("(queued until current turn finishes)")
			continue
		}

		if _, err := a.ctrl.RunTurn(ctx, input); err != nil {
			a.clearStatus()
			fmt.Println("\nError:", err)
			continue
		}
		a.clearStatus()
		fmt.Println()
	}
}

// slashCommand handles the local command surface. Returns done=true on
// /exit.
func (a *app) slashCommand(ctx context.Context, input string) (bool, error) {
	cmd, rest, _ := strings.Cut(input[1:], " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "exit", "quit", "q":
		return true, nil

	case "help":
		fmt.Print(`Commands:
  /clear       Reset the conversation
  /mode        Cycle permission mode (auto → approve → manual)
  /tasks       List tracked tasks
  /agents      List available plugin agents
  /save        Save transcript to .grok/history/
  /load [path] Load the newest (or given) transcript
  /exit        Exit
`)

	case "clear":
		a.session.Reset()
		a.ctrl.Clear()
		fmt.Println("Conversation cleared.")

	case "mode":
		next := grokcode.CycleMode(a.session.Perms.Mode())
		a.session.Perms.SetMode(next)
		fmt.Println("Permission mode:", next)

	case "tasks":
		obs := a.registry.Execute(ctx, grokcode.ToolCall{Name: "task_list", Args: []byte(`{}`)})
		fmt.Println(obs)

	case "agents":
		agents := a.plugins.Agents()
		if len(agents) == 0 {
			fmt.Println("No plugin agents found (looked in .grok/agents/ and .grok/plugins/).")
			break
		}
		for _, ag := range agents {
			fmt.Printf("  %-20s %s\n", ag.FullName(), ag.Description)
		}

	case "save":
		path, err := grokcode.SaveTranscript(a.session, a.ctrl.Conversation())
		if err != nil {
			return false, err
		}
		fmt.Println("Saved to", path)

	case "load":
		path := rest
		if path == "" {
			transcripts := grokcode.ListTranscripts(a.session)
			if len(transcripts) == 0 {
				return false, errors.New("no saved transcripts")
			}
			path = transcripts[0]
		}
		if err := grokcode.LoadTranscript(path, a.ctrl.Conversation()); err != nil {
			return false, err
		}
		fmt.Println("Loaded", path)

	default:
		// Plugin commands: body becomes the user message, with the
		// argument substituted.
		if c, ok := a.plugins.Command(cmd); ok {
			prompt := c.Prompt
			if rest != "" {
				prompt += "\n\nArguments: " + rest
			}
			if _, err := a.ctrl.RunTurn(ctx, prompt); err != nil {
				return false, err
			}
			fmt.Println()
			break
		}
		fmt.Println("Unknown command:", cmd)
	}
	return false, nil
}

// welcome prints the session banner.
func (a *app) welcome() {
	fmt.Printf("grokCode — %s @ %s\n", a.cfg.LLM.Model, a.session.Cwd)
	if files := a.ctrl.Assembler().LoadedProjectFiles(); len(files) > 0 {
		fmt.Println("Project context:", strings.Join(files, ", "))
	}
	fmt.Println("Permission mode:", a.session.Perms.Mode(), "— /help for commands")
}

// close flushes optional subsystems.
func (a *app) close() {
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.shutdownTracing != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.shutdownTracing(shutdownCtx)
	}
}
