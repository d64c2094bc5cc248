// Package scaffold creates the files of a new sqlseq project.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/sqlseq/sqlseq/internal/config"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/driver"
	"github.com/sqlseq/sqlseq/internal/sqliteutil"
	"github.com/sqlseq/sqlseq/internal/writer"
)

// ErrConfigExists is returned when the project already has a configuration
// file and Force is not set.
var ErrConfigExists = errors.New("sqlseq.toml already exists (use --force to overwrite)")

// Options describe the first connection of the new project.
type Options struct {
	Dir          string
	ConnectionID string
	URL          string
	Database     string
	Force        bool
}

// Result lists what Generate wrote.
type Result struct {
	ConfigPath       string
	ScriptPath       string
	EnvExamplePath   string
	DatabaseFile     string
	GitignoreUpdated bool
}

// Defaults used for empty Options fields.
const (
	DefaultConnectionID = "local"
	DefaultURL          = "sqlite://data"
	DefaultDatabase     = "main"
)

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.ConnectionID == "" {
		o.ConnectionID = DefaultConnectionID
	}
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	return o
}

// Generate writes sqlseq.toml, an example script and the ignore rules for
// generated files. SQLite connections get their database file created;
// networked ones get a password variable in .env.example.
func Generate(opts Options) (*Result, error) {
	opts = opts.withDefaults()
	result := &Result{ConfigPath: filepath.Join(opts.Dir, config.FileNames[0])}

	if _, err := os.Stat(result.ConfigPath); err == nil && !opts.Force {
		return nil, ErrConfigExists
	}

	defaults := config.Default()
	dbType := driver.DetectDriver(opts.URL)
	passwordVar := envVar(opts.ConnectionID) + "_PASSWORD"

	conn := fileConnection{URL: opts.URL, Databases: []string{opts.Database}}
	if dbType == database.DatabaseTypePostgres || dbType == database.DatabaseTypePgx {
		conn.User = opts.ConnectionID
		conn.Password = "${" + passwordVar + "}"
	}
	if err := writeConfig(result.ConfigPath, fileConfig{
		Application: defaults.Application,
		Executor:    fileExecutor{UniqueSuffix: defaults.Executor.UniqueSuffix},
		Connections: map[string]fileConnection{opts.ConnectionID: conn},
	}); err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", config.FileNames[0], err)
	}

	for _, dir := range []string{defaults.Application.InputDirectory, defaults.Application.OutputDirectory} {
		if err := os.MkdirAll(filepath.Join(opts.Dir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	script, err := writeExample(filepath.Join(opts.Dir, defaults.Application.InputDirectory), opts, dbType)
	if err != nil {
		return nil, err
	}
	result.ScriptPath = script

	switch dbType {
	case database.DatabaseTypeSQLite:
		dbFile := sqliteutil.DatabaseFile(opts.URL, opts.Database)
		if !filepath.IsAbs(dbFile) {
			dbFile = filepath.Join(opts.Dir, dbFile)
		}
		if _, err := os.Stat(dbFile); os.IsNotExist(err) {
			if err := sqliteutil.CreateSQLiteDatabase(dbFile); err != nil {
				return nil, fmt.Errorf("failed to create SQLite database %s: %w", dbFile, err)
			}
			result.DatabaseFile = dbFile
		}
	case database.DatabaseTypePostgres, database.DatabaseTypePgx:
		result.EnvExamplePath = filepath.Join(opts.Dir, ".env.example")
		if err := appendMissing(result.EnvExamplePath, "# Copy to .env or .env.<profile> and fill in real values", []string{passwordVar + "="}); err != nil {
			return nil, fmt.Errorf("failed to update .env.example: %w", err)
		}
	}

	ignore := []string{
		strings.TrimSuffix(defaults.Application.OutputDirectory, "/") + "/",
		strings.TrimSuffix(defaults.Application.StagingDirectory, "/") + "/",
		".sqlseq-state.json",
		".env",
		".env.*",
		"!.env.example",
	}
	gitignore := filepath.Join(opts.Dir, ".gitignore")
	before, _ := os.ReadFile(gitignore)
	if err := appendMissing(gitignore, "# sqlseq (added by sqlseq init)", ignore); err != nil {
		return nil, fmt.Errorf("failed to update .gitignore: %w", err)
	}
	after, _ := os.ReadFile(gitignore)
	result.GitignoreUpdated = len(after) != len(before)

	return result, nil
}

type fileConfig struct {
	Application config.ApplicationConfig  `toml:"application"`
	Executor    fileExecutor              `toml:"executor"`
	Connections map[string]fileConnection `toml:"connections"`
}

type fileExecutor struct {
	UniqueSuffix string `toml:"unique_suffix"`
}

type fileConnection struct {
	URL       string   `toml:"url"`
	User      string   `toml:"user,omitempty"`
	Password  string   `toml:"password,omitempty"`
	Databases []string `toml:"databases"`
}

func writeConfig(path string, cfg fileConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# sqlseq configuration\n")
	b.WriteString("# Generated by: sqlseq init\n")
	b.WriteString("#\n")
	b.WriteString("# Secrets belong in .env or .env.<profile>, referenced as ${VAR}.\n\n")
	b.Write(data)
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// writeExample saves a one-step script against the new connection.
func writeExample(dir string, opts Options, dbType database.DatabaseType) (string, error) {
	path := filepath.Join(dir, "example.seq")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return "", fmt.Errorf("failed to create example script: %w", err)
	}

	if err := saveExample(path, opts, dbType); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write example script: %w", err)
	}
	return path, nil
}

func saveExample(path string, opts Options, dbType database.DatabaseType) error {
	query := "SELECT 1 AS answer"
	switch dbType {
	case database.DatabaseTypeSQLite, database.DatabaseTypeLibSQL:
		query = "SELECT name, type FROM sqlite_master ORDER BY name"
	case database.DatabaseTypePostgres, database.DatabaseTypePgx:
		query = "SELECT table_schema, table_name FROM information_schema.tables ORDER BY 1, 2"
	}

	b := document.NewBuilder()
	if err := b.Origin(path); err != nil {
		return err
	}
	if err := b.Name("example"); err != nil {
		return err
	}
	b.Identifier("example")
	step := b.Step()
	if err := step.Connection(opts.ConnectionID); err != nil {
		return err
	}
	if err := step.Database(opts.Database); err != nil {
		return err
	}
	if err := step.ResultTable("tables"); err != nil {
		return err
	}
	step.Line(query)
	if err := step.Apply(); err != nil {
		return err
	}
	doc, err := b.Build()
	if err != nil {
		return err
	}
	return writer.Save(doc)
}

// appendMissing appends the lines not already present in the file, under
// header. The file is created when missing.
func appendMissing(path, header string, lines []string) error {
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}
	present := make(map[string]bool)
	for _, l := range strings.Split(content, "\n") {
		present[strings.TrimSpace(l)] = true
	}

	var missing []string
	for _, l := range lines {
		if !present[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	if content != "" {
		b.WriteString("\n")
	}
	b.WriteString(header + "\n")
	for _, l := range missing {
		b.WriteString(l + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func envVar(id string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, id))
}
