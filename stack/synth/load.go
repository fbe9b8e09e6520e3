package synth

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/acksell/gqlstack/stack/resolver"
	"github.com/acksell/gqlstack/stack/stackcfg"
)

// Load reads the schema, the function code and the resolver templates named
// by cfg. Each file is read once.
func Load(cfg stackcfg.Config) (Inputs, error) {
	schema, err := os.ReadFile(cfg.Path(cfg.API.Schema))
	if err != nil {
		return Inputs{}, fmt.Errorf("reading schema: %w", err)
	}
	code, err := os.ReadFile(cfg.Path(cfg.Function.Code))
	if err != nil {
		return Inputs{}, fmt.Errorf("reading function code: %w", err)
	}
	catalog, err := resolver.LoadCatalog(catalogFS(cfg))
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{
		Config:       cfg,
		Schema:       string(schema),
		FunctionCode: string(code),
		Catalog:      catalog,
	}, nil
}

// catalogFS picks the filesystem root and directory the resolver templates
// are read from. A directory inside the project stays relative to it so
// error paths read like the configuration; any other directory is rooted
// at its parent, since fs paths cannot leave their root.
func catalogFS(cfg stackcfg.Config) (fs.FS, string) {
	rel := filepath.Clean(cfg.Resolvers)
	if filepath.IsLocal(rel) {
		return os.DirFS(cfg.Dir), filepath.ToSlash(rel)
	}
	abs := cfg.Path(cfg.Resolvers)
	return os.DirFS(filepath.Dir(abs)), filepath.Base(abs)
}

// WriteFile writes an encoded template, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
