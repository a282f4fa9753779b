// Package builder checks plugin sources out of a git repository into a
// temporary workspace, builds them and hands the artifact to an installer.
package builder

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/git"
	"github.com/egoavara/plugforge/internal/i18n"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/project"
	"github.com/egoavara/plugforge/internal/workspace"
)

var tracer = otel.Tracer("plugforge/builder")

// GitClient is the subset of git operations a build needs.
type GitClient interface {
	Clone(ctx context.Context, url, destPath string) error
	Checkout(ctx context.Context, repoPath, ref string) error
	GetCurrentCommit(ctx context.Context, repoPath string) (string, error)
	CurrentBranch(ctx context.Context, repoPath string) (string, error)
}

// ProjectLoader recognizes a plugin project in a directory.
type ProjectLoader interface {
	Load(dir string) (*project.Project, error)
}

// Prompter asks the user yes/no questions.
type Prompter interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Request names the sources to build.
type Request struct {
	RepositoryURL string
	Ref           string // empty means the default branch
	CheckoutDir   string // empty means inside the workspace
}

// Artifact is a built plugin. Path is only valid while the InstallFunc runs.
type Artifact struct {
	Path      string
	Namespace string
	Name      string
	Version   string
	Commit    string
	Branch    string // empty when the checkout is detached
}

// InstallFunc receives the artifact while its workspace still exists.
type InstallFunc func(ctx context.Context, artifact *Artifact) error

// Builder builds plugins from source control.
type Builder struct {
	git      GitClient
	projects ProjectLoader
	prompter Prompter
	contract plugin.Coordinate
	tempDir  string
	keep     []string
	cursor   *workspace.Cursor
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithContract sets the dependency that marks a project as a plugin.
func WithContract(c plugin.Coordinate) Option {
	return func(b *Builder) { b.contract = c }
}

// WithTempDir sets the parent directory of workspaces.
func WithTempDir(dir string) Option {
	return func(b *Builder) { b.tempDir = dir }
}

// WithProtectedDirs names directories an explicit checkout directory must not
// wipe, such as the live plugin directory.
func WithProtectedDirs(dirs ...string) Option {
	return func(b *Builder) { b.keep = append(b.keep, dirs...) }
}

// WithCursor shares a working-directory cursor with the caller.
func WithCursor(c *workspace.Cursor) Option {
	return func(b *Builder) { b.cursor = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a Builder.
func New(gitClient GitClient, projects ProjectLoader, prompter Prompter, opts ...Option) *Builder {
	contract, _ := plugin.ParseCoordinate(config.DefaultContract)
	cwd, _ := os.Getwd()

	b := &Builder{
		git:      gitClient,
		projects: projects,
		prompter: prompter,
		contract: contract,
		cursor:   workspace.NewCursor(cwd),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build checks out and builds req, then calls install with the artifact.
// The workspace is removed and the cursor restored on every path out.
func (b *Builder) Build(ctx context.Context, req Request, install InstallFunc) (err error) {
	ctx, span := tracer.Start(ctx, "builder.build",
		trace.WithAttributes(
			attribute.String("git.repository", req.RepositoryURL),
			attribute.String("git.ref", req.Ref),
		),
	)
	defer func() {
		if err != nil && !plugin.IsAborted(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ws, err := workspace.Acquire(b.tempDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			b.logger.WarnContext(ctx, "failed to remove workspace", "path", ws.Root(), "error", rerr)
		}
	}()

	restore := b.cursor.Enter(ws.Root())
	defer restore()
	plugin.Track(ctx, plugin.PhaseBuildingFromSource)

	buildDir, err := ws.PrepareBuildDir(req.CheckoutDir, b.keep...)
	if err != nil {
		return err
	}

	b.logger.InfoContext(ctx, "cloning plugin sources", "repository", req.RepositoryURL, "dir", buildDir)
	if err := b.git.Clone(ctx, req.RepositoryURL, buildDir); err != nil {
		return sourceControlError(err, req).Wrapf(err, "failed to clone %s", req.RepositoryURL)
	}

	restoreBuild := b.cursor.Enter(buildDir)
	defer restoreBuild()

	if req.Ref != "" {
		span.AddEvent("checkout")
		if err := b.git.Checkout(ctx, buildDir, req.Ref); err != nil {
			return sourceControlError(err, req).Wrapf(err, "failed to check out %s", req.Ref)
		}
	}

	proj, err := b.projects.Load(b.cursor.Current())
	if err != nil {
		return err
	}

	if err := b.confirmPluginProject(ctx, proj); err != nil {
		return err
	}

	meta, err := proj.Metadata()
	if err != nil {
		return err
	}
	pkg, err := proj.Packaging()
	if err != nil {
		return err
	}

	span.AddEvent("build")
	b.logger.InfoContext(ctx, "building plugin", "namespace", meta.Namespace, "name", meta.Name, "dir", proj.Root())
	if err := pkg.ExecuteBuild(ctx); err != nil {
		return err
	}

	artifactPath := pkg.FinalArtifact()
	if !plugin.IsRegularFile(artifactPath) {
		return plugin.ErrArtifactMissing(artifactPath)
	}
	plugin.Track(ctx, plugin.PhaseArtifactProduced)

	commit, cerr := b.git.GetCurrentCommit(ctx, buildDir)
	if cerr != nil {
		b.logger.DebugContext(ctx, "could not read built commit", "dir", buildDir, "error", cerr)
	}
	branch, berr := b.git.CurrentBranch(ctx, buildDir)
	if berr != nil || branch == "HEAD" {
		branch = ""
	}

	return install(ctx, &Artifact{
		Path:      artifactPath,
		Namespace: meta.Namespace,
		Name:      meta.Name,
		Version:   meta.Version,
		Commit:    commit,
		Branch:    branch,
	})
}

// confirmPluginProject asks before building a project that does not depend on
// the plugin contract. Declining aborts the build.
func (b *Builder) confirmPluginProject(ctx context.Context, proj *project.Project) error {
	deps, err := proj.Dependencies()
	if err != nil && !plugin.HasCode(err, plugin.CodeCapabilityMissing) {
		return err
	}
	if err == nil && deps.Has(b.contract) {
		return nil
	}

	question := i18n.T("prompt.not_plugin_project", map[string]any{"Dir": proj.Root()})
	ok, perr := b.prompter.Confirm(ctx, question, false)
	if perr != nil {
		return oops.With("dir", proj.Root()).Wrapf(perr, "failed to ask for confirmation")
	}
	if !ok {
		return plugin.ErrAborted("not a plugin project")
	}

	b.logger.WarnContext(ctx, "building project without plugin contract", "dir", proj.Root(), "contract", b.contract.String())
	return nil
}

func sourceControlError(err error, req Request) oops.OopsErrorBuilder {
	errb := oops.Code(plugin.CodeSourceControlFailed).
		With("repository", req.RepositoryURL).
		With("ref", req.Ref)

	var authErr *git.AuthError
	if errors.As(err, &authErr) {
		errb = errb.Hint("check the credentials git uses for " + req.RepositoryURL)
	}
	return errb
}
