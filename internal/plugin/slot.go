package plugin

import (
	"path/filepath"
	"strings"
)

// SlotName returns the live plugin file name for a project namespace and name.
// Only the last dot-separated segment of the namespace is kept, so
// ("com.example", "foo-plugin", ".jar") maps to "example_foo-plugin.jar".
func SlotName(namespace, name, ext string) string {
	ns := strings.Trim(namespace, ".")
	if i := strings.LastIndex(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ns == "" {
		return sanitizeSlotPart(name) + ext
	}
	return sanitizeSlotPart(ns) + "_" + sanitizeSlotPart(name) + ext
}

// SlotForArtifact derives the slot of a downloaded artifact from its coordinate.
func SlotForArtifact(c Coordinate, artifactPath string) string {
	return SlotName(c.Group, c.ID, filepath.Ext(artifactPath))
}

// sanitizeSlotPart keeps slot names inside the plugin directory.
func sanitizeSlotPart(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)
}
