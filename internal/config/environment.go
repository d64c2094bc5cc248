package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/driver"
)

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DotenvPaths returns the dotenv files consulted for profile, lowest
// precedence first: ".env" then ".env.<profile>", next to the config file.
func (c *Config) DotenvPaths(profile string) []string {
	dir := c.ConfigDir()
	paths := []string{filepath.Join(dir, ".env")}
	if profile = strings.TrimSpace(profile); profile != "" {
		paths = append(paths, filepath.Join(dir, ".env."+profile))
	}
	return paths
}

// LoadDotenv reads the dotenv files for profile. Missing files are skipped;
// a missing profile file is an error because the profile was asked for
// explicitly.
func (c *Config) LoadDotenv(profile string) (map[string]string, error) {
	values := make(map[string]string)
	paths := c.DotenvPaths(profile)

	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to access %s: %w", path, err)
			}
			if i > 0 {
				return nil, fmt.Errorf("profile %q not found: %s does not exist", profile, path)
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		read, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range read {
			values[k] = v
		}
	}
	return values, nil
}

// Expand replaces ${VAR} references with dotenv values, falling back to the
// process environment. Undefined variables are an error.
func Expand(s string, values map[string]string) (string, error) {
	var missing []string
	out := envReference.ReplaceAllStringFunc(s, func(ref string) string {
		name := envReference.FindStringSubmatch(ref)[1]
		if v, ok := values[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		missing = append(missing, name)
		return ref
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ResolveConnections expands secrets in every configured connection and
// returns them ordered by id.
func (c *Config) ResolveConnections(profile string) ([]database.ConnectionConfig, error) {
	if len(c.Connections) == 0 {
		return nil, nil
	}

	values, err := c.LoadDotenv(profile)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(c.Connections))
	for id := range c.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	out := make([]database.ConnectionConfig, 0, len(ids))
	for _, id := range ids {
		resolved, err := resolveConnection(id, c.Connections[id], values)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, resolved)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveConnection(id string, conn ConnectionConfig, values map[string]string) (database.ConnectionConfig, error) {
	expand := func(field, v string) (string, error) {
		s, err := Expand(v, values)
		if err != nil {
			return "", fmt.Errorf("connections.%s.%s: %w", id, field, err)
		}
		return s, nil
	}

	url, err := expand("url", conn.URL)
	if err != nil {
		return database.ConnectionConfig{}, err
	}
	user, err := expand("user", conn.User)
	if err != nil {
		return database.ConnectionConfig{}, err
	}
	password, err := expand("password", conn.Password)
	if err != nil {
		return database.ConnectionConfig{}, err
	}

	var props map[string]string
	if len(conn.Properties) > 0 {
		props = make(map[string]string, len(conn.Properties))
		for k, v := range conn.Properties {
			if props[k], err = expand("properties."+k, v); err != nil {
				return database.ConnectionConfig{}, err
			}
		}
	}

	dbType := driver.DetectDriver(url)
	if conn.Driver != "" {
		if dbType, err = driver.ParseType(conn.Driver); err != nil {
			return database.ConnectionConfig{}, fmt.Errorf("connections.%s.driver: %w", id, err)
		}
	}

	databases := make([]string, 0, len(conn.Databases))
	for _, db := range conn.Databases {
		if db = strings.TrimSpace(db); db != "" {
			databases = append(databases, db)
		}
	}

	return database.ConnectionConfig{
		ID:           id,
		URL:          url,
		DatabaseType: dbType,
		User:         user,
		Password:     password,
		Properties:   props,
		Databases:    databases,
	}, nil
}

// ResolvePublish expands secrets in the publish settings.
func (c *Config) ResolvePublish(profile string) (PublishConfig, error) {
	p := c.Publish
	if !p.Enabled() {
		return p, nil
	}

	values, err := c.LoadDotenv(profile)
	if err != nil {
		return PublishConfig{}, err
	}
	for field, v := range map[string]*string{
		"endpoint":   &p.Endpoint,
		"bucket":     &p.Bucket,
		"access_key": &p.AccessKey,
		"secret_key": &p.SecretKey,
	} {
		expanded, err := Expand(*v, values)
		if err != nil {
			return PublishConfig{}, fmt.Errorf("publish.%s: %w", field, err)
		}
		*v = expanded
	}
	return p, nil
}
