package orchestrator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/egoavara/plugforge/internal/builder"
	"github.com/egoavara/plugforge/internal/download"
	"github.com/egoavara/plugforge/internal/fetch"
	"github.com/egoavara/plugforge/internal/git"
	"github.com/egoavara/plugforge/internal/host"
	"github.com/egoavara/plugforge/internal/index"
	"github.com/egoavara/plugforge/internal/installer"
	"github.com/egoavara/plugforge/internal/logging"
	"github.com/egoavara/plugforge/internal/orchestrator"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/project"
)

// scriptedPrompter answers questions in order and remembers them.
type scriptedPrompter struct {
	mu        sync.Mutex
	answers   []bool
	questions []string
}

func (p *scriptedPrompter) Confirm(_ context.Context, question string, defaultYes bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, question)
	if len(p.answers) == 0 {
		return defaultYes, nil
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

// repoGit materializes a fixed file set on clone.
type repoGit struct {
	files map[string]string
}

func (g repoGit) Clone(_ context.Context, _ string, dest string) error {
	for name, content := range g.files {
		path := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (repoGit) Checkout(context.Context, string, string) error {
	return git.ErrRefNotFound
}

func (repoGit) GetCurrentCommit(context.Context, string) (string, error) {
	return "0123abcd", nil
}

func (repoGit) CurrentBranch(context.Context, string) (string, error) {
	return "main", nil
}

// touchRunner produces the artifact named by its last command argument.
type touchRunner struct {
	runs int
}

func (r *touchRunner) Run(_ context.Context, dir string, _ []string, command []string, _ io.Writer) error {
	r.runs++
	path := filepath.Join(dir, command[len(command)-1])
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("built plugin"), 0o644)
}

var _ = Describe("Installation pipeline", func() {
	var (
		ctx       context.Context
		tempDir   string
		pluginDir string
		server    *httptest.Server
		prompter  *scriptedPrompter
		loaded    []string
		signal    *host.Signal
		ledger    *plugin.InstalledManager
		gitRepo   repoGit
		runner    *touchRunner
		configDir string
		orch      *orchestrator.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		tempDir = GinkgoT().TempDir()
		pluginDir = filepath.Join(GinkgoT().TempDir(), "plugins")
		prompter = &scriptedPrompter{}
		loaded = nil
		signal = host.NewSignal()
		DeferCleanup(signal.Close)
		ledger = plugin.NewInstalledManager(filepath.Join(GinkgoT().TempDir(), "installed.json"))
		gitRepo = repoGit{files: map[string]string{}}
		runner = &touchRunner{}
		configDir = pluginDir

		mux := http.NewServeMux()
		mux.HandleFunc("/index.yaml", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.ReplaceAll(`
- name: foo-plugin
  artifact: com.example:foo-plugin
  url: BASE/artifacts/foo-plugin-1.0.jar
- name: baz-lib
  artifact: com.example:baz-lib
- name: barista
  gitrepo: https://git.example.com/barista.git
`, "BASE", "http://"+r.Host)))
		})
		mux.HandleFunc("/artifacts/foo-plugin-1.0.jar", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("foo plugin bytes"))
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	JustBeforeEach(func() {
		logger := logging.Discard()
		fetcher := fetch.New(fetch.WithRetries(0), fetch.WithBaseDelay(time.Millisecond))
		loader := host.LoaderFunc(func(_ context.Context, path string) error {
			loaded = append(loaded, path)
			return nil
		})
		projects := &project.Loader{Runner: runner}

		orch = orchestrator.New(orchestrator.Deps{
			Searcher:   index.NewResolver(fetcher, logger),
			Downloader: download.NewHTTPDownloader(fetcher, logger),
			Builder: builder.New(gitRepo, projects, prompter,
				builder.WithTempDir(tempDir),
				builder.WithProtectedDirs(pluginDir),
				builder.WithLogger(logger)),
			Installer: installer.New(pluginDir, prompter, loader, logger),
			Reinit:    signal,
			Ledger:    ledger,
		}, orchestrator.Config{
			DefaultIndex: server.URL + "/index.yaml",
			PluginDir:    configDir,
			TempDir:      tempDir,
		}, logger)
	})

	workspaceIsGone := func() {
		entries, err := os.ReadDir(tempDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	}

	reinitFired := func() bool {
		select {
		case <-signal.C():
			return true
		default:
			return false
		}
	}

	Describe("installing by name", func() {
		It("downloads a binary plugin into its slot and reinitializes the host", func() {
			report, err := orch.InstallByName(ctx, "foo")
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Phase).To(Equal(plugin.PhaseDone))
			Expect(report.Slot).To(Equal("example_foo-plugin.jar"))

			target := filepath.Join(pluginDir, "example_foo-plugin.jar")
			Expect(os.ReadFile(target)).To(Equal([]byte("foo plugin bytes")))
			Expect(loaded).To(ConsistOf(target))
			Expect(reinitFired()).To(BeTrue())
			workspaceIsGone()

			entry, err := ledger.Get("example_foo-plugin.jar")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).NotTo(BeNil())
			Expect(entry.Strategy).To(Equal(plugin.StrategyIndex))
		})

		It("refuses an ambiguous name", func() {
			_, err := orch.InstallByName(ctx, "ba")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeAmbiguous))
			Expect(reinitFired()).To(BeFalse())
		})

		It("reports an unknown name", func() {
			_, err := orch.InstallByName(ctx, "nothing-like-this")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeNotFound))
		})

		It("reports a missing download location as a download failure", func() {
			report, err := orch.InstallByName(ctx, "baz-lib")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeDownloadFailed))
			Expect(report.Phase).To(Equal(plugin.PhaseFailed))
			Expect(loaded).To(BeEmpty())
			workspaceIsGone()
		})

		It("reports an unreachable index", func() {
			server.Close()
			_, err := orch.InstallByName(ctx, "foo")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeIndexUnavailable))
		})

		Context("when the slot is occupied", func() {
			var target string

			BeforeEach(func() {
				Expect(os.MkdirAll(pluginDir, 0o755)).To(Succeed())
				target = filepath.Join(pluginDir, "example_foo-plugin.jar")
				Expect(os.WriteFile(target, []byte("old version"), 0o644)).To(Succeed())
			})

			It("keeps the occupant when replacement is declined", func() {
				prompter.answers = []bool{false}

				report, err := orch.InstallByName(ctx, "foo")
				Expect(plugin.IsAborted(err)).To(BeTrue())
				Expect(report.Phase).To(Equal(plugin.PhaseAborted))

				Expect(os.ReadFile(target)).To(Equal([]byte("old version")))
				Expect(loaded).To(BeEmpty())
				Expect(reinitFired()).To(BeFalse())
				Expect(prompter.questions).To(HaveLen(1))
				workspaceIsGone()
			})

			It("replaces the occupant by default", func() {
				_, err := orch.InstallByName(ctx, "foo")
				Expect(err).NotTo(HaveOccurred())
				Expect(os.ReadFile(target)).To(Equal([]byte("foo plugin bytes")))
			})
		})
	})

	Describe("installing from source control", func() {
		Context("a plugin project", func() {
			BeforeEach(func() {
				gitRepo.files[project.DescriptorName] = `
namespace: com.example
name: barista
version: 0.3.0
dependencies: [io.plugforge:plugforge-api]
build:
  command: [touch, target/barista.so]
  artifact: target/barista.so
`
			})

			It("builds, installs and cleans up", func() {
				report, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/barista.git", "", "")
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Phase).To(Equal(plugin.PhaseDone))
				Expect(report.Slot).To(Equal("example_barista.so"))
				Expect(filepath.Join(pluginDir, "example_barista.so")).To(BeAnExistingFile())
				Expect(reinitFired()).To(BeTrue())
				Expect(prompter.questions).To(BeEmpty())
				workspaceIsGone()

				entry, err := ledger.Get("example_barista.so")
				Expect(err).NotTo(HaveOccurred())
				Expect(entry.Commit).To(Equal("0123abcd"))
				Expect(entry.Version).To(Equal("0.3.0"))
				Expect(entry.Ref).To(Equal("main"))
			})

			It("refuses a checkout directory that holds the live plugins", func() {
				Expect(os.MkdirAll(pluginDir, 0o755)).To(Succeed())
				live := filepath.Join(pluginDir, "example_other.so")
				Expect(os.WriteFile(live, []byte("live"), 0o644)).To(Succeed())

				_, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/barista.git", "", pluginDir)
				Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeWorkspaceFailed))
				Expect(os.ReadFile(live)).To(Equal([]byte("live")))
				Expect(runner.runs).To(BeZero())
				workspaceIsGone()
			})

			It("keeps an explicit checkout directory", func() {
				checkout := filepath.Join(GinkgoT().TempDir(), "src")

				_, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/barista.git", "", checkout)
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(checkout, project.DescriptorName)).To(BeAnExistingFile())
				workspaceIsGone()
			})

			It("fails on an unknown ref and still cleans up", func() {
				report, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/barista.git", "no-such-ref", "")
				Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeSourceControlFailed))
				Expect(report.Phase).To(Equal(plugin.PhaseFailed))
				workspaceIsGone()
			})

			It("is reached through an index entry with a git repository", func() {
				report, err := orch.InstallByName(ctx, "barista")
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Reference.GitRepo).To(Equal("https://git.example.com/barista.git"))
				Expect(report.Slot).To(Equal("example_barista.so"))
			})
		})

		Context("a project without the plugin contract", func() {
			BeforeEach(func() {
				gitRepo.files[project.DescriptorName] = `
namespace: com.example
name: app
build:
  command: [touch, target/app.so]
  artifact: target/app.so
`
			})

			It("aborts when the user declines, copying nothing", func() {
				prompter.answers = []bool{false}

				report, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/app.git", "", "")
				Expect(plugin.IsAborted(err)).To(BeTrue())
				Expect(report.Phase).To(Equal(plugin.PhaseAborted))
				Expect(prompter.questions).To(HaveLen(1))

				_, statErr := os.Stat(filepath.Join(pluginDir, "example_app.so"))
				Expect(os.IsNotExist(statErr)).To(BeTrue())
				Expect(reinitFired()).To(BeFalse())
				workspaceIsGone()
			})

			It("installs when the user accepts", func() {
				prompter.answers = []bool{true}

				_, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/app.git", "", "")
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(pluginDir, "example_app.so")).To(BeAnExistingFile())
			})
		})

		It("reports a build that produces nothing as a missing artifact", func() {
			gitRepo.files[project.DescriptorName] = `
namespace: com.example
name: empty
dependencies: [io.plugforge:plugforge-api]
build:
  command: [touch, target/other.so]
  artifact: target/empty.so
`
			_, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/empty.git", "", "")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeArtifactMissing))
			Expect(loaded).To(BeEmpty())
			workspaceIsGone()
		})
	})

	Context("without a plugin directory", func() {
		BeforeEach(func() {
			configDir = ""
			gitRepo.files[project.DescriptorName] = `
namespace: com.example
name: barista
dependencies: [io.plugforge:plugforge-api]
build:
  command: [touch, target/barista.so]
  artifact: target/barista.so
`
		})

		It("builds nothing and leaves an explicit checkout directory untouched", func() {
			checkout := filepath.Join(GinkgoT().TempDir(), "src")

			_, err := orch.InstallFromSourceControl(ctx, "https://git.example.com/barista.git", "", checkout)
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeConfigMissing))
			Expect(runner.runs).To(BeZero())
			Expect(checkout).NotTo(BeADirectory())
			Expect(reinitFired()).To(BeFalse())
			workspaceIsGone()
		})

		It("downloads nothing when installing by name", func() {
			_, err := orch.InstallByName(ctx, "foo")
			Expect(plugin.ErrorCode(err)).To(Equal(plugin.CodeConfigMissing))
			Expect(loaded).To(BeEmpty())
			workspaceIsGone()
		})
	})

	It("distinguishes aborted from failed outcomes", func() {
		prompter.answers = []bool{false}
		gitRepo.files[project.DescriptorName] = "namespace: a\nname: b\nbuild:\n  command: [touch, x.so]\n  artifact: x.so\n"

		aborted, abortErr := orch.InstallFromSourceControl(ctx, "https://git.example.com/b.git", "", "")
		failed, failErr := orch.InstallByName(ctx, "nothing-like-this")

		Expect(plugin.IsAborted(abortErr)).To(BeTrue())
		Expect(plugin.IsAborted(failErr)).To(BeFalse())
		Expect(aborted.Phase).To(Equal(plugin.PhaseAborted))
		Expect(failed.Phase).To(Equal(plugin.PhaseFailed))
	})
})
