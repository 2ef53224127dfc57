// Package migrations registers the embedded hookgate schema with a
// migration runner, one filesystem per SQL dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	hookgate "github.com/goliatone/go-hookgate"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-hookgate"
	migrationsDir      = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory relative to the migrations
// root. Postgres files sit at the root; sqlite overrides live in a subfolder.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// WithFilesystems replaces the embedded schema, for hosts that ship their
// own copies of the hookgate tables.
func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		var kept []FilesystemSpec
		for _, spec := range filesystems {
			spec.Dialect = normalizeDialect(spec.Dialect)
			if spec.Dialect == "" || spec.FS == nil {
				continue
			}
			kept = append(kept, spec)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems resolves one filesystem per dialect from source, or from the
// embedded tree when source is omitted. Every dialect must carry at least one
// up migration.
func Filesystems(source ...fs.FS) ([]FilesystemSpec, error) {
	root := hookgate.GetMigrationsFS()
	if len(source) > 0 && source[0] != nil {
		root = source[0]
	}
	base, basePath, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys, path := base, basePath
		if entry.dir != "." {
			if fsys, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", entry.dialect, err)
			}
			path = joinPath(basePath, entry.dir)
		}
		ups, err := fs.Glob(fsys, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", entry.dialect, path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", entry.dialect, path)
		}
		out = append(out, FilesystemSpec{Dialect: entry.dialect, Path: path, FS: fsys})
	}
	return out, nil
}

// Register hands each targeted dialect filesystem to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

// Apply registers the schema for a single dialect through register and then
// runs migrate. With go-persistence-bun, register wraps
// client.RegisterSQLMigrations and migrate is client.Migrate.
func Apply(
	ctx context.Context,
	dialect string,
	register func(fsys fs.FS),
	migrate func(ctx context.Context) error,
	opts ...Option,
) error {
	if register == nil || migrate == nil {
		return fmt.Errorf("migrations: register and migrate functions are required")
	}
	dialect = normalizeDialect(dialect)
	if dialect == "" {
		return fmt.Errorf("migrations: dialect is required")
	}
	opts = append(opts, WithValidationTargets(dialect))
	registered := 0
	_, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		register(fsys)
		registered++
		return nil
	}, opts...)
	if err != nil {
		return err
	}
	if registered == 0 {
		return fmt.Errorf("migrations: no filesystem for dialect %q", dialect)
	}
	if err := migrate(ctx); err != nil {
		return fmt.Errorf("migrations: migrate %s: %w", dialect, err)
	}
	return nil
}

func resolveRoot(root fs.FS) (fs.FS, string, error) {
	sub, subErr := fs.Sub(root, migrationsDir)
	if subErr == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, migrationsDir, nil
		}
	}
	// A root that already is the migrations directory.
	if ups, err := fs.Glob(root, "*.sql"); err == nil && len(ups) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", migrationsDir)
}

func normalizeDialect(dialect string) string {
	return strings.ToLower(strings.TrimSpace(dialect))
}

func normalizeDialects(dialects []string) []string {
	var out []string
	for _, dialect := range dialects {
		if dialect = normalizeDialect(dialect); dialect != "" && !slices.Contains(out, dialect) {
			out = append(out, dialect)
		}
	}
	return out
}

func joinPath(base string, dir string) string {
	if base == "." {
		return dir
	}
	return strings.TrimSuffix(base, "/") + "/" + dir
}
