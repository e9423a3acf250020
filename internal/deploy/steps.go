package deploy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"steward/internal/api"
	"steward/internal/command"
)

const (
	binDir   = "bin"
	logsDir  = "logs"
	filesDir = ".files"
)

func stageDir(root string, ref api.ResourceRef) string {
	return filepath.Join(root, string(ref.Kind)+"-"+ref.ID)
}

func (p *Pipeline) createScriptsDir(ctx context.Context, d *deployment) (bool, error) {
	outcome, err := p.deps.Controller.CreateDirectory(ctx, d.res, p.cfg.RemoteScriptsDir)
	return false, checked(d.res.Ref, api.OpCreateDirectory, outcome, err)
}

func (p *Pipeline) copyScripts(ctx context.Context, d *deployment) (bool, error) {
	for _, name := range []string{p.cfg.DeployScript, p.cfg.InvokeScript} {
		local := filepath.Join(p.cfg.LocalScriptsDir, name)
		remote := path.Join(p.cfg.RemoteScriptsDir, name)
		outcome, err := p.deps.Controller.SecureCopy(ctx, d.res, d.actor, local, remote)
		if err := checked(d.res.Ref, api.OpSecureCopy, outcome, err); err != nil {
			return false, err
		}
	}
	outcome, err := p.deps.Controller.ChangeFileMode(ctx, d.res, "a+x", p.cfg.RemoteScriptsDir, "*.sh")
	return false, checked(d.res.Ref, api.OpChangeFileMode, outcome, err)
}

// deleteService removes a previous service registration. A resource that
// was never deployed has none.
func (p *Pipeline) deleteService(ctx context.Context, d *deployment) (bool, error) {
	if d.entryState == d.res.Ref.Kind.Profile().New {
		return true, nil
	}
	outcome, err := p.deps.Controller.ControlResource(ctx, d.res, api.OpDeleteService, d.actor)
	return false, checked(d.res.Ref, api.OpDeleteService, outcome, err)
}

func (p *Pipeline) treeDir(d *deployment) string {
	return filepath.Join(d.stageDir, d.res.Name)
}

// render builds the instance tree: the kind's base templates, rendered
// archive templates, the invoke launcher and the start/stop helpers.
func (p *Pipeline) render(_ context.Context, d *deployment) (bool, error) {
	if err := os.RemoveAll(d.stageDir); err != nil {
		return false, fmt.Errorf("failed to clean %s: %w", d.stageDir, err)
	}
	tree := p.treeDir(d)
	if err := copyTree(p.cfg.baseDir(d.res.Ref.Kind), tree); err != nil {
		return false, err
	}

	rc := NewRenderContext(d.res)
	for _, t := range p.cfg.ArchiveTemplates {
		if !t.AppliesTo(d.res.Ref.Kind) {
			continue
		}
		rel, err := RenderString(t.Template+" path", t.Path, rc)
		if err != nil {
			return false, err
		}
		target, err := within(tree, rel)
		if err != nil {
			return false, err
		}
		content, err := p.deps.Renderer.Render(t.Template, rc)
		if err != nil {
			return false, err
		}
		if err := writeFile(target, content); err != nil {
			return false, err
		}
	}

	launcher := command.LauncherName(d.res.PlatformOrDefault())
	content, err := p.deps.Renderer.Render(p.cfg.launcherTemplate(d.res), rc)
	if err != nil {
		return false, err
	}
	if err := writeFile(filepath.Join(tree, binDir, launcher), launcherText(launcher, content)); err != nil {
		return false, err
	}

	for _, helper := range p.cfg.binHelpers(d.res) {
		if err := copyFile(filepath.Join(p.cfg.LocalScriptsDir, helper), filepath.Join(tree, binDir, helper)); err != nil {
			return false, err
		}
	}

	if err := os.MkdirAll(filepath.Join(tree, logsDir), 0o755); err != nil {
		return false, fmt.Errorf("failed to create logs directory: %w", err)
	}
	return false, nil
}

func (p *Pipeline) pack(_ context.Context, d *deployment) (bool, error) {
	name := ArchiveName(d.res.Name, d.res.Ref.Kind.Profile().ArchiveExt)
	archive, err := Package(p.treeDir(d), d.res.Name, filepath.Join(d.stageDir, name))
	if err != nil {
		return false, err
	}
	d.result.Archive = archive
	return false, nil
}

func (p *Pipeline) remoteArchive(d *deployment) (string, error) {
	if d.result.Archive == nil {
		return "", errNoArchive
	}
	return path.Join(p.cfg.RemoteScriptsDir, d.result.Archive.Name), nil
}

func (p *Pipeline) shipArchive(ctx context.Context, d *deployment) (bool, error) {
	remote, err := p.remoteArchive(d)
	if err != nil {
		return false, err
	}
	outcome, err := p.deps.Controller.SecureCopy(ctx, d.res, d.actor, d.result.Archive.Path, remote)
	return false, checked(d.res.Ref, api.OpSecureCopy, outcome, err)
}

// deployArchive names the archive relative to the scripts directory the
// deploy helper runs in.
func (p *Pipeline) deployArchive(ctx context.Context, d *deployment) (bool, error) {
	if d.result.Archive == nil {
		return false, errNoArchive
	}
	outcome, err := p.deps.Controller.ControlResource(ctx, d.res, api.OpDeployConfigArchive, d.actor, d.result.Archive.Name)
	return false, checked(d.res.Ref, api.OpDeployConfigArchive, outcome, err)
}

func (p *Pipeline) shipResourceFiles(ctx context.Context, d *deployment) (bool, error) {
	var files []FileTemplate
	for _, f := range p.cfg.ResourceFiles {
		if f.AppliesTo(d.res.Ref.Kind) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return true, nil
	}
	return false, p.shipFiles(ctx, d, files)
}

// shipFiles renders each file into the staging area and copies it to its
// remote destination. Relative destinations are resolved against the
// instance home.
func (p *Pipeline) shipFiles(ctx context.Context, d *deployment, files []FileTemplate) error {
	rc := NewRenderContext(d.res)
	local := filepath.Join(d.stageDir, filesDir)
	if err := os.MkdirAll(local, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", local, err)
	}

	for i, f := range files {
		dest, err := RenderString(f.Template+" path", f.Path, rc)
		if err != nil {
			return err
		}
		dest = strings.TrimSpace(dest)
		if !path.IsAbs(dest) {
			dest = path.Join(rc.InstanceHome, dest)
		}
		content, err := p.deps.Renderer.Render(f.Template, rc)
		if err != nil {
			return err
		}
		src := filepath.Join(local, fmt.Sprintf("%02d-%s", i, path.Base(dest)))
		if err := writeFile(src, content); err != nil {
			return err
		}
		outcome, err := p.deps.Controller.SecureCopy(ctx, d.res, d.actor, src, dest)
		if err := checked(d.res.Ref, api.OpSecureCopy, outcome, err); err != nil {
			return err
		}
		d.result.Files = append(d.result.Files, dest)
	}
	return nil
}

func (p *Pipeline) installService(ctx context.Context, d *deployment) (bool, error) {
	outcome, err := p.deps.Controller.ControlResource(ctx, d.res, api.OpInvokeService, d.actor)
	return false, checked(d.res.Ref, api.OpInvokeService, outcome, err)
}

func (p *Pipeline) markReady(ctx context.Context, d *deployment) (bool, error) {
	p.deps.Bus.Commit(ctx, api.CurrentState{
		Ref:        d.res.Ref,
		State:      d.res.Ref.Kind.Profile().Ready,
		Actor:      d.actor,
		ObservedAt: p.now(),
	})
	return false, nil
}

// within resolves rel below root and rejects paths that leave it.
func within(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(rel)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("template path %q is outside the instance tree", rel)
	}
	return filepath.Join(root, clean), nil
}

func writeFile(target, content string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// copyTree copies the contents of src into dst.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("template tree %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template tree %s is not a directory", src)
	}
	return filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}
