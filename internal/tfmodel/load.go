package tfmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-config-inspect/tfconfig"
)

// LoadDir loads the configuration rooted at dir, following local module
// sources recursively. Registry and remote modules are recorded as calls but
// not loaded.
func LoadDir(ctx context.Context, dir string) (*Config, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	if !tfconfig.IsModuleDir(root) {
		return nil, fmt.Errorf("no Terraform configuration files in %s", root)
	}

	l := &loader{cfg: &Config{Root: root}, active: map[string]bool{}}
	l.load(ctx, root, RootPath)
	return l.cfg, l.errs.ErrorOrNil()
}

type loader struct {
	cfg    *Config
	errs   *multierror.Error
	active map[string]bool
}

func (l *loader) load(ctx context.Context, dir, path string) {
	if err := ctx.Err(); err != nil {
		l.errs = multierror.Append(l.errs, err)
		return
	}
	if l.active[dir] {
		l.errs = multierror.Append(l.errs, fmt.Errorf("%s: module includes itself via %s", DisplayPath(path), dir))
		return
	}
	l.active[dir] = true
	defer delete(l.active, dir)

	files, err := readConfigFiles(dir)
	if err != nil {
		l.errs = multierror.Append(l.errs, err)
		return
	}
	m, err := ParseFiles(path, files)
	if err != nil {
		l.errs = multierror.Append(l.errs, fmt.Errorf("%s: %w", DisplayPath(path), err))
	}
	m.Dir = dir
	inspect(m, dir)
	l.cfg.Modules = append(l.cfg.Modules, m)

	calls := append([]ModuleCall(nil), m.ModuleCalls...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Name < calls[j].Name })
	for _, call := range calls {
		if call.SourceInfo.Kind != SourceLocal {
			continue
		}
		childDir := filepath.Join(dir, filepath.FromSlash(call.Source))
		if info, err := os.Stat(childDir); err != nil || !info.IsDir() {
			l.errs = multierror.Append(l.errs, fmt.Errorf("%s: module %q source %s not found", DisplayPath(path), call.Name, call.Source))
			continue
		}
		l.load(ctx, childDir, ChildPath(path, call.Name))
	}
}

// readConfigFiles returns the contents of the native-syntax .tf files in dir.
func readConfigFiles(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	files := map[string][]byte{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".tf") || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		files[name] = data
	}
	return files, nil
}

// inspect fills in what terraform-config-inspect knows better than a plain
// syntax walk: provider requirements declared in legacy provider blocks and
// JSON-syntax files, and variable types.
func inspect(m *Module, dir string) {
	mod, _ := tfconfig.LoadModule(dir)
	if mod == nil {
		return
	}

	names := make([]string, 0, len(mod.RequiredProviders))
	for name := range mod.RequiredProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req := mod.RequiredProviders[name]
		m.addRequirement(ProviderRequirement{
			Name:        name,
			Source:      req.Source,
			Constraints: req.VersionConstraints,
		})
	}

	for i := range m.Variables {
		v := &m.Variables[i]
		if iv, ok := mod.Variables[v.Name]; ok && v.Type == "" {
			v.Type = iv.Type
		}
	}
}
