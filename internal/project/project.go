// Package project models a plugin source project through its plugforge.yaml
// descriptor. Each aspect of the project is exposed as a capability that may
// be absent.
package project

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/egoavara/plugforge/internal/plugin"
)

// DescriptorName is the file that marks a directory as a plugin project.
const DescriptorName = "plugforge.yaml"

// Descriptor is the decoded plugforge.yaml.
type Descriptor struct {
	Namespace    string     `yaml:"namespace"`
	Name         string     `yaml:"name"`
	Version      string     `yaml:"version,omitempty"`
	Dependencies []string   `yaml:"dependencies,omitempty"`
	Build        *BuildSpec `yaml:"build,omitempty"`
}

// BuildSpec describes how the project produces its artifact.
type BuildSpec struct {
	Command  []string          `yaml:"command"`
	Artifact string            `yaml:"artifact"`
	Env      map[string]string `yaml:"env,omitempty"`
}

// Project is a loaded plugin project rooted at a directory.
type Project struct {
	root   string
	desc   Descriptor
	runner Runner
	output io.Writer
}

// Loader loads projects and hands them the runner and output used for builds.
type Loader struct {
	Runner Runner
	Output io.Writer
}

// NewLoader creates a Loader running builds with ExecRunner and discarding output.
func NewLoader() *Loader {
	return &Loader{Runner: ExecRunner{}, Output: io.Discard}
}

// Load reads the descriptor in dir.
func (l *Loader) Load(dir string) (*Project, error) {
	errb := oops.Code(plugin.CodeProjectNotRecognized).With("dir", dir)

	data, err := os.ReadFile(filepath.Join(dir, DescriptorName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errb.Errorf("cannot recognize plugin project in %s", dir)
		}
		return nil, errb.Wrapf(err, "failed to read %s", DescriptorName)
	}

	var desc Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errb.Wrapf(err, "failed to parse %s", DescriptorName)
	}

	if desc.Version != "" {
		if _, err := semver.NewVersion(desc.Version); err != nil {
			return nil, errb.With("version", desc.Version).Wrapf(err, "invalid project version")
		}
	}
	if b := desc.Build; b != nil {
		if len(b.Command) == 0 {
			return nil, errb.Errorf("build section of %s has no command", DescriptorName)
		}
		if b.Artifact == "" || !filepath.IsLocal(b.Artifact) {
			return nil, errb.With("artifact", b.Artifact).
				Errorf("build artifact must be a path inside the project")
		}
	}

	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	output := l.Output
	if output == nil {
		output = io.Discard
	}

	return &Project{root: dir, desc: desc, runner: runner, output: output}, nil
}

// Root returns the project directory.
func (p *Project) Root() string {
	return p.root
}

// Dependencies returns the dependency capability.
func (p *Project) Dependencies() (DependencyInfo, error) {
	if p.desc.Dependencies == nil {
		return DependencyInfo{}, capabilityMissing("dependencies", p.root)
	}

	info := DependencyInfo{}
	for _, raw := range p.desc.Dependencies {
		c, err := plugin.ParseCoordinate(raw)
		if err != nil {
			return DependencyInfo{}, oops.Code(plugin.CodeProjectNotRecognized).
				With("dir", p.root).
				Wrapf(err, "invalid dependency")
		}
		info.coordinates = append(info.coordinates, c)
	}
	return info, nil
}

// Metadata returns the naming capability.
func (p *Project) Metadata() (Metadata, error) {
	if strings.TrimSpace(p.desc.Namespace) == "" || strings.TrimSpace(p.desc.Name) == "" {
		return Metadata{}, capabilityMissing("metadata", p.root)
	}
	return Metadata{
		Namespace: p.desc.Namespace,
		Name:      p.desc.Name,
		Version:   p.desc.Version,
	}, nil
}

// Packaging returns the build capability.
func (p *Project) Packaging() (*Packaging, error) {
	if p.desc.Build == nil {
		return nil, capabilityMissing("packaging", p.root)
	}
	return &Packaging{project: p, spec: *p.desc.Build}, nil
}

// DependencyInfo lists declared dependencies.
type DependencyInfo struct {
	coordinates []plugin.Coordinate
}

// Coordinates returns the declared dependencies.
func (d DependencyInfo) Coordinates() []plugin.Coordinate {
	return d.coordinates
}

// Has reports whether a dependency with the same group and id is declared.
func (d DependencyInfo) Has(c plugin.Coordinate) bool {
	for _, dep := range d.coordinates {
		if dep.Matches(c) {
			return true
		}
	}
	return false
}

// Metadata names the project.
type Metadata struct {
	Namespace string
	Name      string
	Version   string
}

func capabilityMissing(name, dir string) error {
	return oops.Code(plugin.CodeCapabilityMissing).
		With("capability", name).
		With("dir", dir).
		Errorf("project in %s does not provide the %s capability", dir, name)
}
