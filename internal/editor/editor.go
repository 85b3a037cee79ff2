// Package editor launches the configured editor on an environment.
package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/vem-project/vem/internal/store"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/model"
)

// EnvEnvironment names the active environment for the editor process.
const EnvEnvironment = "VEM_ENVIRONMENT"

// Runner runs a prepared command. Tests replace it.
type Runner func(cmd *exec.Cmd) error

// Editor runs an editor command line against an environment's config.
type Editor struct {
	argv   []string
	run    Runner
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

// Option configures an Editor.
type Option func(*Editor)

// WithRunner replaces the function that executes the command.
func WithRunner(r Runner) Option {
	return func(e *Editor) { e.run = r }
}

// WithIO sets the editor's standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Editor) {
		e.stdin, e.stdout, e.stderr = stdin, stdout, stderr
	}
}

// WithGetenv sets the lookup used to expand variables in the command.
func WithGetenv(getenv func(string) string) Option {
	return func(e *Editor) { e.getenv = getenv }
}

// New parses command with POSIX shell word rules. Variables are expanded;
// command substitution is not allowed.
func New(command string, opts ...Option) (*Editor, error) {
	e := &Editor{
		run:    func(cmd *exec.Cmd) error { return cmd.Run() },
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(e)
	}

	argv, err := shell.Fields(command, e.getenv)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("cannot parse editor command %q", command).Wrap(err)
	}
	if len(argv) == 0 {
		return nil, errclass.ErrConfigInvalid.WithMessage("editor command cannot be empty")
	}
	e.argv = argv
	return e, nil
}

// Args returns the parsed command line.
func (e *Editor) Args() []string {
	return append([]string(nil), e.argv...)
}

// Command builds the process that edits env's config file.
func (e *Editor) Command(ctx context.Context, env *model.Environment) *exec.Cmd {
	configFile := filepath.Join(env.Path, store.ConfigFileName)
	args := append(e.Args()[1:], configFile)
	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.Env = append(os.Environ(),
		EnvEnvironment+"="+env.Name,
		"VIMINIT="+vimInit(env.Path, configFile),
	)
	return cmd
}

// Open runs the editor on env's config file and waits for it to exit.
func (e *Editor) Open(ctx context.Context, env *model.Environment) error {
	cmd := e.Command(ctx, env)
	if err := e.run(cmd); err != nil {
		return fmt.Errorf("run editor %s: %w", e.argv[0], err)
	}
	return nil
}

// vimInit prepends the environment's plugin tree to runtimepath and
// sources its config file.
func vimInit(envPath, configFile string) string {
	rtp := escapeExArg(filepath.Join(envPath, store.SkeletonDir))
	return fmt.Sprintf("set runtimepath^=%s | source %s", rtp, escapeExArg(configFile))
}

// escapeExArg backslash-escapes characters that end or split an Ex
// command argument.
func escapeExArg(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\\', '|', '"', ',':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
