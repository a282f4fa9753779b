// Package orchestrator drives a single plugin installation from a name or a
// source-control URL through to a live, reinitialized host.
package orchestrator

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/egoavara/plugforge/internal/builder"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/workspace"
)

var tracer = otel.Tracer("plugforge/orchestrator")

// Searcher queries a plugin index.
type Searcher interface {
	Search(ctx context.Context, location, query string) ([]plugin.Reference, error)
}

// Downloader fetches a binary artifact into destDir and returns its path.
type Downloader interface {
	Download(ctx context.Context, ref plugin.Reference, destDir string) (string, error)
}

// SourceBuilder builds a plugin from source control.
type SourceBuilder interface {
	Build(ctx context.Context, req builder.Request, install builder.InstallFunc) error
}

// ArtifactInstaller places an artifact into a slot.
type ArtifactInstaller interface {
	Install(ctx context.Context, artifactPath, slot string) (string, error)
}

// Reinitializer asks the host to pick up newly installed plugins.
type Reinitializer interface {
	Reinitialize() error
}

// Ledger remembers what occupies each slot.
type Ledger interface {
	Record(slot string, entry plugin.InstalledEntry) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Searcher   Searcher
	Downloader Downloader
	Builder    SourceBuilder
	Installer  ArtifactInstaller
	Reinit     Reinitializer
	Ledger     Ledger // optional
}

// Config holds the configuration values the orchestrator reads.
type Config struct {
	DefaultIndex string
	PluginDir    string
	TempDir      string // parent of download workspaces; empty means the system temp dir
}

// Report describes the outcome of one install attempt.
type Report struct {
	Reference plugin.Reference
	Slot      string
	Path      string
	Phase     plugin.Phase
}

// Orchestrator coordinates resolution, build or download, installation and
// host reinitialization.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Search lists the plugins in the default index whose name contains query.
func (o *Orchestrator) Search(ctx context.Context, query string) (refs []plugin.Reference, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.search",
		trace.WithAttributes(attribute.String("query", query)))
	defer func() { endSpan(span, err) }()

	if o.cfg.DefaultIndex == "" {
		return nil, errDefaultIndexMissing()
	}
	return o.deps.Searcher.Search(ctx, o.cfg.DefaultIndex, query)
}

// InstallByName resolves name against the default index and installs the
// single match.
func (o *Orchestrator) InstallByName(ctx context.Context, name string) (report *Report, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.install_by_name",
		trace.WithAttributes(attribute.String("plugin.name", name)))
	report = &Report{Phase: plugin.PhaseIdle}
	ctx = o.track(ctx, span, report)
	defer func() { o.finish(ctx, span, report, err) }()

	if o.cfg.PluginDir == "" {
		return report, errPluginDirMissing()
	}
	if o.cfg.DefaultIndex == "" {
		return report, errDefaultIndexMissing()
	}

	refs, err := o.deps.Searcher.Search(ctx, o.cfg.DefaultIndex, name)
	if err != nil {
		return report, err
	}

	switch len(refs) {
	case 0:
		return report, oops.Code(plugin.CodeNotFound).
			With("name", name).
			With("index", o.cfg.DefaultIndex).
			Errorf("no plugin found for %q", name)
	case 1:
	default:
		candidates := make([]string, 0, len(refs))
		for _, ref := range refs {
			candidates = append(candidates, ref.Name)
		}
		return report, oops.Code(plugin.CodeAmbiguous).
			With("name", name).
			With("candidates", candidates).
			Errorf("%q matches %d plugins: %s", name, len(refs), strings.Join(candidates, ", "))
	}

	err = o.installResolved(ctx, span, report, refs[0])
	return report, err
}

// InstallReference installs an index entry the caller has already resolved,
// such as one chosen from an interactive picker.
func (o *Orchestrator) InstallReference(ctx context.Context, ref plugin.Reference) (report *Report, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.install_reference",
		trace.WithAttributes(attribute.String("plugin.name", ref.Name)))
	report = &Report{Phase: plugin.PhaseIdle}
	ctx = o.track(ctx, span, report)
	defer func() { o.finish(ctx, span, report, err) }()

	if o.cfg.PluginDir == "" {
		return report, errPluginDirMissing()
	}
	if err = ref.Validate(); err != nil {
		return report, err
	}
	err = o.installResolved(ctx, span, report, ref)
	return report, err
}

func (o *Orchestrator) installResolved(ctx context.Context, span trace.Span, report *Report, ref plugin.Reference) error {
	report.Reference = ref
	plugin.Track(ctx, plugin.PhaseResolved)
	span.SetAttributes(attribute.Bool("plugin.git", ref.IsGit()))

	if ref.IsGit() {
		return o.installFromSource(ctx, report, ref.GitRepo, ref.GitRef, "")
	}

	if err := o.installBinary(ctx, report, ref); err != nil {
		return err
	}
	return o.reinitialize(ctx)
}

// InstallFromSourceControl builds the plugin at repoURL and installs it.
// ref may be empty for the default branch; checkoutDir may be empty to keep
// the checkout inside the temporary workspace.
func (o *Orchestrator) InstallFromSourceControl(ctx context.Context, repoURL, ref, checkoutDir string) (report *Report, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.install_from_source_control",
		trace.WithAttributes(
			attribute.String("git.repository", repoURL),
			attribute.String("git.ref", ref),
		))
	report = &Report{
		Phase: plugin.PhaseIdle,
		Reference: plugin.Reference{
			Name:    repositoryName(repoURL),
			GitRepo: repoURL,
			GitRef:  ref,
		},
	}
	ctx = o.track(ctx, span, report)
	defer func() { o.finish(ctx, span, report, err) }()

	if o.cfg.PluginDir == "" {
		return report, errPluginDirMissing()
	}
	plugin.Track(ctx, plugin.PhaseResolved)
	err = o.installFromSource(ctx, report, repoURL, ref, checkoutDir)
	return report, err
}

// Restart asks the host to reinitialize without installing anything.
func (o *Orchestrator) Restart(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.restart")
	defer func() { endSpan(span, err) }()

	if err := o.deps.Reinit.Reinitialize(); err != nil {
		return reinitError(err)
	}
	o.logger.InfoContext(ctx, "host reinitialization requested")
	return nil
}

func (o *Orchestrator) installFromSource(ctx context.Context, report *Report, repoURL, ref, checkoutDir string) error {
	req := builder.Request{RepositoryURL: repoURL, Ref: ref, CheckoutDir: checkoutDir}

	err := o.deps.Builder.Build(ctx, req, func(ctx context.Context, a *builder.Artifact) error {
		slot := plugin.SlotName(a.Namespace, a.Name, filepath.Ext(a.Path))
		report.Slot = slot

		installed, err := o.deps.Installer.Install(ctx, a.Path, slot)
		report.Path = installed
		if err != nil {
			return err
		}

		recorded := ref
		if recorded == "" {
			recorded = a.Branch
		}
		o.record(ctx, slot, plugin.InstalledEntry{
			Name:       a.Name,
			Strategy:   plugin.StrategyGit,
			Repository: repoURL,
			Ref:        recorded,
			Commit:     a.Commit,
			Version:    a.Version,
			Path:       installed,
		})
		return nil
	})
	if err != nil {
		return err
	}

	return o.reinitialize(ctx)
}

func (o *Orchestrator) installBinary(ctx context.Context, report *Report, ref plugin.Reference) error {
	coordinate, err := plugin.ParseCoordinate(ref.Artifact)
	if err != nil {
		return oops.Code(plugin.CodeIndexInvalid).With("plugin", ref.Name).Wrap(err)
	}

	ws, err := workspace.Acquire(o.cfg.TempDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			o.logger.WarnContext(ctx, "failed to remove workspace", "path", ws.Root(), "error", rerr)
		}
	}()

	plugin.Track(ctx, plugin.PhaseDownloading)
	artifactPath, err := o.deps.Downloader.Download(ctx, ref, ws.Root())
	if err != nil {
		return err
	}
	if !plugin.IsRegularFile(artifactPath) {
		return oops.Code(plugin.CodeDownloadFailed).
			With("plugin", ref.Name).
			With("path", artifactPath).
			Errorf("download of %s produced no artifact", ref.Artifact)
	}
	plugin.Track(ctx, plugin.PhaseArtifactProduced)

	slot := plugin.SlotForArtifact(coordinate, artifactPath)
	report.Slot = slot

	installed, err := o.deps.Installer.Install(ctx, artifactPath, slot)
	report.Path = installed
	if err != nil {
		return err
	}

	version := ref.Version
	if version == "" {
		version = coordinate.Version
	}
	o.record(ctx, slot, plugin.InstalledEntry{
		Name:       ref.Name,
		Strategy:   plugin.StrategyIndex,
		Coordinate: ref.Artifact,
		Version:    version,
		Path:       installed,
	})
	return nil
}

func (o *Orchestrator) reinitialize(ctx context.Context) error {
	plugin.Track(ctx, plugin.PhaseReinitializeRequested)
	if err := o.deps.Reinit.Reinitialize(); err != nil {
		return reinitError(err)
	}
	return nil
}

// record writes the ledger. Failures are logged and never fail an install.
func (o *Orchestrator) record(ctx context.Context, slot string, entry plugin.InstalledEntry) {
	if o.deps.Ledger == nil {
		return
	}
	entry.InstalledAt = o.now().UTC().Format(time.RFC3339)
	if err := o.deps.Ledger.Record(slot, entry); err != nil {
		o.logger.WarnContext(ctx, "failed to record installed plugin", "slot", slot, "error", err)
	}
}

// track routes phase transitions into the report, the log, the span and any
// tracker already carried by ctx.
func (o *Orchestrator) track(ctx context.Context, span trace.Span, report *Report) context.Context {
	parent := plugin.TrackerFrom(ctx)
	return plugin.WithTracker(ctx, plugin.TrackerFunc(func(p plugin.Phase) {
		report.Phase = p
		span.AddEvent(string(p))
		o.logger.DebugContext(ctx, "install phase", "phase", string(p))
		if parent != nil {
			parent.Transition(p)
		}
	}))
}

// finish moves the report to its terminal phase and closes the span.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, report *Report, err error) {
	switch {
	case err == nil:
		plugin.Track(ctx, plugin.PhaseDone)
		o.logger.InfoContext(ctx, "plugin installed", "plugin", report.Reference.Name, "slot", report.Slot, "path", report.Path)
	case plugin.IsAborted(err):
		plugin.Track(ctx, plugin.PhaseAborted)
		o.logger.InfoContext(ctx, "installation aborted", "plugin", report.Reference.Name)
	default:
		plugin.Track(ctx, plugin.PhaseFailed)
		o.logger.DebugContext(ctx, "installation failed", "plugin", report.Reference.Name, "code", plugin.ErrorCode(err), "error", err)
	}
	span.SetAttributes(attribute.String("install.phase", string(report.Phase)))
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil && !plugin.IsAborted(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func reinitError(err error) error {
	if plugin.HasCode(err, plugin.CodeReinitializeFailed) {
		return err
	}
	return oops.Code(plugin.CodeReinitializeFailed).Wrapf(err, "host reinitialization failed")
}

func errDefaultIndexMissing() error {
	return plugin.ErrConfigMissing("index.default", "set a default plugin index or pass --index")
}

func errPluginDirMissing() error {
	return plugin.ErrConfigMissing("plugins.dir", "set plugins.dir or pass --plugin-dir")
}

func repositoryName(repoURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return path.Base(repoURL)
	}
	return name
}
