package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

const migrationSuffix = ".up.sql"

type migration struct {
	version int
	name    string
	body    string
}

// MigrateUp brings the schema to the latest embedded version. Each pending
// migration runs in its own transaction together with its bookkeeping row in
// schema_migrations, so a failed file leaves earlier ones applied.
func MigrateUp(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	pending, err := embeddedMigrations()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migrate: %s: %w", m.name, err)
		}
	}
	return nil
}

// MigrationVersion returns the newest applied version, or 0 on a fresh database.
func MigrationVersion(db *sql.DB) (int, error) {
	if err := createMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	var v int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("migrate: read version: %w", err)
	}
	return v, nil
}

func createMigrationsTable(db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied: %w", err)
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied: %w", err)
		}
		out[v] = true
	}
	return out, rows.Err()
}

// embeddedMigrations returns the embedded files ordered by version. File
// names must start with a numeric version followed by an underscore.
func embeddedMigrations() ([]migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*"+migrationSuffix)
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(names))
	seen := make(map[int]string, len(names))
	for _, p := range names {
		name := path.Base(p)
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("%s: missing version prefix", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s: bad version prefix %q", name, prefix)
		}
		if other, dup := seen[v]; dup {
			return nil, fmt.Errorf("%s: version %d already used by %s", name, v, other)
		}
		seen[v] = name

		body, err := migrationFS.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, migration{version: v, name: name, body: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (m migration) apply(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.body); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return fmt.Errorf("record version %d: %w", m.version, err)
	}
	return tx.Commit()
}
