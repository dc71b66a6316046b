package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Serbz/TorScraper-SC/internal/model"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, wantErr: nil},
		{name: "missing database", mutate: func(c *Config) { c.DBFile = "" }, wantErr: ErrNoDatabase},
		{name: "no proxies", mutate: func(c *Config) { c.Proxies = nil }, wantErr: ErrNoProxies},
		{
			name: "embedded tor needs no proxies",
			mutate: func(c *Config) {
				c.Proxies = nil
				c.EmbeddedTor = true
			},
			wantErr: nil,
		},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "zero queue", mutate: func(c *Config) { c.QueueSize = 0 }, wantErr: ErrInvalidQueueSize},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative delay", mutate: func(c *Config) { c.CrawlDelay = -time.Second }, wantErr: ErrInvalidCrawlDelay},
		{
			name: "two mode switches",
			mutate: func(c *Config) {
				c.RescrapeFailed = true
				c.TitlesOnly = true
			},
			wantErr: ErrConflictingModes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("bad save mode", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.SaveMode = "sometimes"
		if err := c.Validate(); err == nil {
			t.Error("Validate() error = nil, want save mode error")
		}
	})
}

func TestConfigCrawlMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   model.CrawlMode
	}{
		{name: "default is fresh", mutate: func(*Config) {}, want: model.ModeFresh},
		{name: "rescrape failed", mutate: func(c *Config) { c.RescrapeFailed = true }, want: model.ModeRescrapeFailed},
		{name: "rescrape missing data", mutate: func(c *Config) { c.RescrapeMissingData = true }, want: model.ModeRescrapeMissingData},
		{name: "titles only", mutate: func(c *Config) { c.TitlesOnly = true }, want: model.ModeTitlesOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New()
			tt.mutate(c)
			if got := c.CrawlMode(); got != tt.want {
				t.Errorf("CrawlMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadConfigFile() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("overlay onto defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
db_file: crawl.db
proxies:
  - 127.0.0.1:9050
timeout: 90s
keywords:
  - bitcoin
  - "REGEX: btc[0-9]+"
save_page_data: Keyword Match
onion_only: true
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		c := New()
		if err := f.Apply(c); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}

		if c.DBFile != "crawl.db" {
			t.Errorf("DBFile = %q, want crawl.db", c.DBFile)
		}
		if !reflect.DeepEqual(c.Proxies, []string{"127.0.0.1:9050"}) {
			t.Errorf("Proxies = %v", c.Proxies)
		}
		if c.Timeout != 90*time.Second {
			t.Errorf("Timeout = %v, want 90s", c.Timeout)
		}
		if !reflect.DeepEqual(c.Keywords, []string{"bitcoin", "REGEX: btc[0-9]+"}) {
			t.Errorf("Keywords = %v", c.Keywords)
		}
		if c.SaveMode != "Keyword Match" {
			t.Errorf("SaveMode = %q", c.SaveMode)
		}
		if !c.OnionOnly {
			t.Error("OnionOnly = false, want true")
		}
		// Fields absent from the file keep their defaults.
		if c.Workers != DefaultWorkers {
			t.Errorf("Workers = %d, want default %d", c.Workers, DefaultWorkers)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() after overlay error = %v", err)
		}
	})

	t.Run("malformed duration fails", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("timeout: ninety\n"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if err := f.Apply(New()); err == nil {
			t.Error("Apply() error = nil, want duration parse error")
		}
	})
}

func TestLoadKeywordsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keywords.txt")
	content := "bitcoin\n\n# a comment\nREGEX: (?=escrow)\n  hidden service  \n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := LoadKeywordsFile(path)
	if err != nil {
		t.Fatalf("LoadKeywordsFile() error = %v", err)
	}
	want := []string{"bitcoin", "REGEX: (?=escrow)", "hidden service"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadKeywordsFile() = %v, want %v", got, want)
	}
}

func TestLoadSeedsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seeds.txt")
	content := "check http://a.onion/start and also www.example.com\nplain words http://a.onion/start\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := LoadSeedsFile(path)
	if err != nil {
		t.Fatalf("LoadSeedsFile() error = %v", err)
	}
	want := []string{"http://a.onion/start", "http://www.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadSeedsFile() = %v, want %v", got, want)
	}
}
