package sqlite

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

const defaultDBFile = "sori.db"

var journalModes = []string{"wal", "delete", "truncate", "persist", "memory", "off"}

// Config holds the memory.sqlite configuration.
type Config struct {
	// Path is the database file. Defaults to {DataDir}/sori.db.
	Path string `yaml:"path"`

	// Journal is the SQLite journal_mode. Defaults to wal.
	Journal string `yaml:"journal"`

	// BusyTimeout bounds how long a writer waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.Journal == "" {
		c.Journal = "wal"
	}
	c.Journal = strings.ToLower(c.Journal)
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %s", c.BusyTimeout)
	}
	if !slices.Contains(journalModes, c.Journal) {
		return fmt.Errorf("sqlite: journal must be one of %s, got %q", strings.Join(journalModes, ", "), c.Journal)
	}
	return nil
}

// dsn renders the driver connection string. Pragmas ride in the URI so
// every pooled connection gets them.
func (c *Config) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode("+c.Journal+")")
	return "file:" + c.Path + "?" + q.Encode()
}
