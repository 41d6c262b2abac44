// Package toolkit composes the default tool registry: the full built-in
// suite wired to one session, with the permission gate installed as a
// registry interceptor so every execution path is gated uniformly.
package toolkit

import (
	grokcode "github.com/nevindra/grokcode"
	"github.com/nevindra/grokcode/tools/file"
	"github.com/nevindra/grokcode/tools/find"
	"github.com/nevindra/grokcode/tools/plan"
	"github.com/nevindra/grokcode/tools/shell"
	"github.com/nevindra/grokcode/tools/task"
	"github.com/nevindra/grokcode/tools/web"
)

// Options tunes registry composition.
type Options struct {
	// InputHandler bridges approvals and ask_user to the human. nil
	// degrades gracefully: approvals come back as observations telling
	// the model to use approve_operation, ask_user emits a framed
	// question.
	InputHandler grokcode.InputHandler
	// ShellRunner substitutes the bash execution backend (Docker
	// sandbox). nil runs on the host.
	ShellRunner shell.Runner
	// CoreOnly registers only the file/find/shell tools (no tasks, plan
	// mode, web or approvals). Used by minimal embeddings.
	CoreOnly bool
}

// New builds the default registry for a session.
func New(session *grokcode.Session, opts Options) *grokcode.Registry {
	registry := grokcode.NewRegistry()

	registry.Register(file.New(session))
	registry.Register(find.New(session))

	var shellOpts []shell.Option
	if opts.ShellRunner != nil {
		shellOpts = append(shellOpts, shell.WithRunner(opts.ShellRunner))
	}
	registry.Register(shell.New(session, shellOpts...))

	if !opts.CoreOnly {
		registry.Register(task.New(session))
		registry.Register(plan.New(session))
		registry.Register(web.New())
		registry.Register(grokcode.NewAskUserTool(opts.InputHandler))
		registry.Register(grokcode.NewApproveTool(session))
	}

	registry.Intercept(shell.RefusalInterceptor())
	registry.Intercept(grokcode.PermissionInterceptor(session, opts.InputHandler))
	return registry
}
