package deploy

import (
	"path/filepath"
	"slices"

	"steward/internal/api"
	"steward/internal/command"
)

// FileTemplate binds a template to the path its output is written to. Path
// is itself a template executed with the same RenderContext.
type FileTemplate struct {
	// Template is the template's path relative to the template directory.
	Template string `yaml:"template"`
	// Path is where the output goes: relative to the instance tree for
	// archive templates, an absolute remote path for resource files.
	Path string `yaml:"path"`
	// Kinds restricts the template to these resource kinds. Empty means all.
	Kinds []api.ResourceKind `yaml:"kinds,omitempty"`
}

// AppliesTo reports whether the template is used for kind.
func (f FileTemplate) AppliesTo(kind api.ResourceKind) bool {
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, kind)
}

// Config locates the local and remote inputs of a deployment.
type Config struct {
	// RemoteScriptsDir receives the helper scripts and the archive.
	RemoteScriptsDir string
	// LocalScriptsDir holds the helper scripts shipped to every host.
	LocalScriptsDir string
	// TemplateDir holds <kind>/base/ trees and the invoke launchers.
	TemplateDir string
	// StagingDir is the local scratch space for rendered trees.
	StagingDir string

	DeployScript string
	InvokeScript string
	// BinHelpers are copied from LocalScriptsDir into the instance's bin/.
	BinHelpers map[api.Platform][]string

	// ArchiveTemplates are rendered into the instance tree before packaging.
	ArchiveTemplates []FileTemplate
	// ResourceFiles are rendered and shipped one by one after the archive.
	ResourceFiles []FileTemplate
}

// DefaultBinHelpers are the start/stop helpers each platform ships in bin/.
func DefaultBinHelpers() map[api.Platform][]string {
	return map[api.Platform][]string{
		api.PlatformWindows: {"start-service.bat", "stop-service.bat"},
		api.PlatformLinux:   {"start-service.sh", "stop-service.sh"},
	}
}

func (c Config) withDefaults() Config {
	layout := command.DefaultLayout()
	if c.RemoteScriptsDir == "" {
		c.RemoteScriptsDir = layout.ScriptsDir
	}
	if c.DeployScript == "" {
		c.DeployScript = layout.DeployScript
	}
	if c.InvokeScript == "" {
		c.InvokeScript = layout.InvokeScript
	}
	if c.BinHelpers == nil {
		c.BinHelpers = DefaultBinHelpers()
	}
	return c
}

// baseDir is the template tree copied verbatim into every instance of kind.
func (c Config) baseDir(kind api.ResourceKind) string {
	return filepath.Join(c.TemplateDir, string(kind), "base")
}

// launcherTemplate names the invoke launcher template for res.
func (c Config) launcherTemplate(res api.Resource) string {
	return filepath.ToSlash(filepath.Join(string(res.Ref.Kind), command.LauncherName(res.PlatformOrDefault())+".tmpl"))
}

func (c Config) binHelpers(res api.Resource) []string {
	return c.BinHelpers[res.PlatformOrDefault()]
}
