package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for when no
// explicit path is given.
const DefaultConfigFile = ".torscraper"

// ErrConfigNotFound is returned when the configuration file does not
// exist. Callers decide whether that is fatal: it is for an explicit
// --config path, it is not for the implicit search.
var ErrConfigNotFound = errors.New("configuration file not found")

// File mirrors the YAML configuration file. Every field is optional;
// absent fields keep their current Config value.
type File struct {
	DBFile        string   `yaml:"db_file"`
	Proxies       []string `yaml:"proxies"`
	EmbeddedTor   *bool    `yaml:"embedded_tor"`
	Workers       int      `yaml:"workers"`
	QueueSize     int      `yaml:"queue_size"`
	Timeout       string   `yaml:"timeout"`
	CrawlDelay    string   `yaml:"crawl_delay"`
	UserAgent     string   `yaml:"user_agent"`
	MaxBodySize   int64    `yaml:"max_body_size"`
	ShutdownGrace string   `yaml:"shutdown_grace"`
	OnionOnly     *bool    `yaml:"onion_only"`
	TopLevelOnly  *bool    `yaml:"top_level_only"`
	Keywords      []string `yaml:"keywords"`
	SaveMode      string   `yaml:"save_page_data"`
	LogFile       string   `yaml:"log_file"`
}

// LoadConfigFile parses the YAML configuration at path.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindConfigFile locates the configuration file:
//  1. an explicit path, if given
//  2. .torscraper in the current directory
//  3. .torscraper in the XDG config home
//  4. .torscraper in the user's home directory
//
// Returns empty when nothing is found.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(xdg.ConfigHome, AppName, DefaultConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Apply overlays the file's set fields onto c. Duration fields use Go
// duration syntax ("90s", "2m"); a malformed duration is returned as an
// error rather than silently ignored.
func (f *File) Apply(c *Config) error {
	if f.DBFile != "" {
		c.DBFile = f.DBFile
	}
	if len(f.Proxies) > 0 {
		c.Proxies = append([]string(nil), f.Proxies...)
	}
	if f.EmbeddedTor != nil {
		c.EmbeddedTor = *f.EmbeddedTor
	}
	if f.Workers > 0 {
		c.Workers = f.Workers
	}
	if f.QueueSize > 0 {
		c.QueueSize = f.QueueSize
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return err
		}
		c.Timeout = d
	}
	if f.CrawlDelay != "" {
		d, err := time.ParseDuration(f.CrawlDelay)
		if err != nil {
			return err
		}
		c.CrawlDelay = d
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.MaxBodySize > 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.ShutdownGrace != "" {
		d, err := time.ParseDuration(f.ShutdownGrace)
		if err != nil {
			return err
		}
		c.ShutdownGrace = d
	}
	if f.OnionOnly != nil {
		c.OnionOnly = *f.OnionOnly
	}
	if f.TopLevelOnly != nil {
		c.TopLevelOnly = *f.TopLevelOnly
	}
	if len(f.Keywords) > 0 {
		c.Keywords = append([]string(nil), f.Keywords...)
	}
	if f.SaveMode != "" {
		c.SaveMode = f.SaveMode
	}
	if f.LogFile != "" {
		c.LogFile = f.LogFile
	}
	return nil
}

// DataFilePath resolves name under the application's XDG data directory,
// creating the directory if needed. Used for default database and log
// locations when the user gives a bare file name is not desired.
func DataFilePath(name string) (string, error) {
	return xdg.DataFile(filepath.Join(AppName, name))
}
