package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/builder"
	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/download"
	"github.com/egoavara/plugforge/internal/fetch"
	"github.com/egoavara/plugforge/internal/git"
	"github.com/egoavara/plugforge/internal/host"
	"github.com/egoavara/plugforge/internal/index"
	"github.com/egoavara/plugforge/internal/installer"
	"github.com/egoavara/plugforge/internal/orchestrator"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/project"
	"github.com/egoavara/plugforge/internal/tui"
)

// runtime is the wired installation pipeline plus the in-process host that
// serves reinitialization requests while a command runs.
type runtime struct {
	orchestrator *orchestrator.Orchestrator
	ledger       *plugin.InstalledManager
	loader       *host.PluginLoader

	signal *host.Signal
	cancel context.CancelFunc
	done   chan error
}

// openRuntime is swapped out in tests.
var openRuntime = newRuntime

// withRuntime runs fn against a runtime built from the loaded configuration
// and the ledger next to the --config file. A failure to stop the host is
// returned when fn itself succeeded.
func withRuntime(cmd *cobra.Command, fn func(*runtime) error) (err error) {
	rt, err := openRuntime(cmd.Context(), config.Get(), config.LedgerPath(configPath))
	if err != nil {
		return err
	}
	defer func() {
		cerr := rt.Close()
		switch {
		case cerr == nil:
		case err == nil:
			err = cerr
		default:
			slog.Default().WarnContext(cmd.Context(), "failed to stop plugin host", "error", cerr)
		}
	}()
	return fn(rt)
}

func newRuntime(ctx context.Context, cfg *config.Config, ledgerPath string) (*runtime, error) {
	logger := slog.Default()

	contract, err := plugin.ParseCoordinate(cfg.Plugins.Contract)
	if err != nil {
		return nil, oops.In("config").
			With("key", "plugins.contract").
			Wrapf(err, "invalid plugins.contract")
	}

	fetcher := fetch.New(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithRetries(cfg.Fetch.Retries),
		fetch.WithLogger(logger),
	)

	gitClient := git.NewClient()
	gitClient.Timeout = cfg.Git.Timeout

	projects := project.NewLoader()
	projects.Output = os.Stderr

	prompter := tui.NewPrompter(assumeYes)

	loader := host.NewPluginLoader(logger)
	manager := host.NewManager(cfg.Plugins.Dir, loader, logger)
	sig := host.NewSignal()
	ledger := plugin.NewInstalledManager(ledgerPath)

	orch := orchestrator.New(orchestrator.Deps{
		Searcher:   index.NewResolver(fetcher, logger),
		Downloader: download.NewHTTPDownloader(fetcher, logger),
		Builder: builder.New(gitClient, projects, prompter,
			builder.WithContract(contract),
			builder.WithProtectedDirs(cfg.Plugins.Dir),
			builder.WithLogger(logger),
		),
		Installer: installer.New(cfg.Plugins.Dir, prompter, manager, logger),
		Reinit:    sig,
		Ledger:    ledger,
	}, orchestrator.Config{
		DefaultIndex: cfg.Index.Default,
		PluginDir:    cfg.Plugins.Dir,
	}, logger)

	hostCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt := &runtime{
		orchestrator: orch,
		ledger:       ledger,
		loader:       loader,
		signal:       sig,
		cancel:       cancel,
		done:         make(chan error, 1),
	}
	go func() {
		rt.done <- manager.Run(hostCtx, sig.C())
	}()

	return rt, nil
}

// Close stops accepting reinitialization requests, waits for the host to
// serve any pending one and stops it.
func (r *runtime) Close() error {
	r.signal.Close()
	err := <-r.done
	r.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
