package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

`

const migrationDownTemplate = `-- Rollback: {{.Name}}
-- Created: {{.Timestamp}}

`

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// MigrationFile is a created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration adds an empty migration pair to every driver directory
// under migrationsRoot, numbered one past the highest existing version so the
// dialects stay in step
func CreateMigration(migrationsRoot string, drivers []string, name, description string) ([]*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}

	next := 1
	for _, driver := range drivers {
		versions, err := listVersions(SourceDir(migrationsRoot, driver))
		if err != nil {
			return nil, err
		}
		if len(versions) > 0 && versions[len(versions)-1]+1 > next {
			next = versions[len(versions)-1] + 1
		}
	}

	version := fmt.Sprintf("%06d", next)
	timestamp := time.Now().Format(time.RFC3339)
	files := make([]*MigrationFile, 0, len(drivers))
	for _, driver := range drivers {
		dir := SourceDir(migrationsRoot, driver)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create migrations directory: %w", err)
		}
		base := filepath.Join(dir, version+"_"+slug)
		mf := &MigrationFile{
			Version:     version,
			Name:        name,
			Description: description,
			Timestamp:   timestamp,
			UpPath:      base + ".up.sql",
			DownPath:    base + ".down.sql",
		}
		if err := writeTemplate(mf.UpPath, migrationUpTemplate, mf); err != nil {
			return nil, err
		}
		if err := writeTemplate(mf.DownPath, migrationDownTemplate, mf); err != nil {
			_ = os.Remove(mf.UpPath)
			return nil, err
		}
		files = append(files, mf)
	}
	return files, nil
}

// ListMigrations returns the base names of the up migrations in dir, in
// version order
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil || match[3] != "up" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".up.sql"))
	}
	return names, nil
}

func listVersions(dir string) ([]int, error) {
	names, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	versions := make([]int, 0, len(names))
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func writeTemplate(path, content string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and collapses separators to single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}
