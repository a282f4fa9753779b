package project

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/plugin"
)

const outputTailSize = 4096

// Runner executes a build command.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, command []string, out io.Writer) error
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

// Run executes command in dir with env appended to the process environment.
func (ExecRunner) Run(ctx context.Context, dir string, env []string, command []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// Packaging builds the project artifact.
type Packaging struct {
	project *Project
	spec    BuildSpec
}

// ExecuteBuild runs the build command synchronously in the project root.
func (p *Packaging) ExecuteBuild(ctx context.Context) error {
	tail := &tailBuffer{limit: outputTailSize}
	out := io.MultiWriter(p.project.output, tail)

	if err := p.project.runner.Run(ctx, p.project.root, p.env(), p.spec.Command, out); err != nil {
		return oops.Code(plugin.CodeBuildFailed).
			With("dir", p.project.root).
			With("command", p.spec.Command).
			With("output", tail.String()).
			Wrapf(err, "build failed in %s", p.project.root)
	}
	return nil
}

// FinalArtifact returns the absolute path the build is expected to produce.
// The file may not exist.
func (p *Packaging) FinalArtifact() string {
	return filepath.Join(p.project.root, filepath.FromSlash(p.spec.Artifact))
}

func (p *Packaging) env() []string {
	keys := make([]string, 0, len(p.spec.Env))
	for k := range p.spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+p.spec.Env[k])
	}
	return env
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
