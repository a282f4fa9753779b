package plugin

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Reference identifies a plugin discoverable through an index.
// Exactly one install strategy applies: a binary artifact or a git source.
type Reference struct {
	Name        string   `yaml:"name" json:"name"`
	Artifact    string   `yaml:"artifact,omitempty" json:"artifact,omitempty"` // group:id[:version]
	URL         string   `yaml:"url,omitempty" json:"url,omitempty"`           // download location of the artifact
	GitRepo     string   `yaml:"gitrepo,omitempty" json:"gitrepo,omitempty"`
	GitRef      string   `yaml:"gitref,omitempty" json:"gitref,omitempty"` // empty means default branch
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string   `yaml:"version,omitempty" json:"version,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// IsGit returns true if the reference is built from a source-control repository.
func (r Reference) IsGit() bool {
	return r.GitRepo != ""
}

// Validate checks that the reference names exactly one install strategy.
func (r Reference) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return oops.Code(CodeIndexInvalid).Errorf("plugin reference has no name")
	}
	if r.IsGit() == (r.Artifact != "") {
		return oops.Code(CodeIndexInvalid).
			With("plugin", r.Name).
			Errorf("plugin [%s] must declare either an artifact or a git repository, not both or neither", r.Name)
	}
	if r.GitRef != "" && !r.IsGit() {
		return oops.Code(CodeIndexInvalid).
			With("plugin", r.Name).
			Errorf("plugin [%s] declares a git ref without a git repository", r.Name)
	}
	if r.Artifact != "" {
		if _, err := ParseCoordinate(r.Artifact); err != nil {
			return oops.Code(CodeIndexInvalid).With("plugin", r.Name).Wrap(err)
		}
	}
	if r.Version != "" {
		if _, err := semver.NewVersion(r.Version); err != nil {
			return oops.Code(CodeIndexInvalid).
				With("plugin", r.Name).
				With("version", r.Version).
				Wrapf(err, "plugin [%s] has an invalid version", r.Name)
		}
	}
	return nil
}

// String returns a short display form.
func (r Reference) String() string {
	if r.IsGit() {
		if r.GitRef != "" {
			return fmt.Sprintf("%s (%s#%s)", r.Name, r.GitRepo, r.GitRef)
		}
		return fmt.Sprintf("%s (%s)", r.Name, r.GitRepo)
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Artifact)
}

// Coordinate is a parsed artifact coordinate: group:id[:version].
type Coordinate struct {
	Group   string
	ID      string
	Version string
}

// ParseCoordinate parses "group:id" or "group:id:version".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Coordinate{}, fmt.Errorf("invalid artifact coordinate %q: expected group:id[:version]", s)
	}
	c := Coordinate{Group: parts[0], ID: parts[1]}
	if len(parts) == 3 {
		c.Version = parts[2]
	}
	return c, nil
}

// String returns the coordinate in group:id[:version] form.
func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.ID
	}
	return c.Group + ":" + c.ID + ":" + c.Version
}

// Matches reports whether other names the same group and id, ignoring versions.
func (c Coordinate) Matches(other Coordinate) bool {
	return c.Group == other.Group && c.ID == other.ID
}

// Strategy names how an installed slot was produced.
type Strategy string

const (
	StrategyIndex Strategy = "index"
	StrategyGit   Strategy = "git"
)

// InstalledPlugins represents the installed.json structure
type InstalledPlugins struct {
	Version int                       `json:"version"`
	Slots   map[string]InstalledEntry `json:"slots"`
}

// InstalledEntry represents the occupant of a single plugin slot
type InstalledEntry struct {
	Name        string   `json:"name"`
	Strategy    Strategy `json:"strategy"`             // "index" or "git"
	Coordinate  string   `json:"coordinate,omitempty"` // only for index installs
	Repository  string   `json:"repository,omitempty"` // only for git installs
	Ref         string   `json:"ref,omitempty"`
	Commit      string   `json:"commit,omitempty"`
	Version     string   `json:"version,omitempty"`
	Path        string   `json:"path"`
	InstalledAt string   `json:"installedAt"`
}

// NewInstalledPlugins creates a new InstalledPlugins instance
func NewInstalledPlugins() *InstalledPlugins {
	return &InstalledPlugins{
		Version: 1,
		Slots:   make(map[string]InstalledEntry),
	}
}
