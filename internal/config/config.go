package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"golang.org/x/crypto/bcrypt"
	"tlog.app/go/errors"
)

// Token is an API access key. Only its bcrypt hash is stored.
type Token struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"`
}

// Config holds the server settings.
type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	Retention       time.Duration `yaml:"retention"` // idle session lifetime
	FlushInterval   time.Duration `yaml:"flush_interval"`
	CleanerInterval time.Duration `yaml:"cleaner_interval"`

	// Fallback keeps unparsable queries as a single quoted term.
	Fallback bool `yaml:"fallback"`

	UpperCaseFields []string `yaml:"upper_case_fields"`

	Tokens []Token `yaml:"tokens"`
}

// file is the on-disk shape of Config. Absent keys stay nil so that
// they keep their defaults, also for an empty or comment-only document.
type file struct {
	Listen  *string `yaml:"listen"`
	DataDir *string `yaml:"data_dir"`

	Retention       *time.Duration `yaml:"retention"`
	FlushInterval   *time.Duration `yaml:"flush_interval"`
	CleanerInterval *time.Duration `yaml:"cleaner_interval"`

	Fallback *bool `yaml:"fallback"`

	UpperCaseFields *[]string `yaml:"upper_case_fields"`

	Tokens []Token `yaml:"tokens"`
}

var ErrInvalid = errors.New("invalid config")

// Default returns the config used when no file is given.
func Default() Config {
	return Config{
		Listen:          ":8080",
		DataDir:         "data",
		Retention:       24 * time.Hour,
		FlushInterval:   time.Minute,
		CleanerInterval: 10 * time.Minute,
		Fallback:        true,
		UpperCaseFields: []string{"pubmed", "doi", "taxonomy"},
	}
}

// Load reads a config file. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrap(err, "config %v", path)
	}

	return cfg, nil
}

// Parse decodes YAML config data on top of Default.
func Parse(data []byte) (Config, error) {
	var f file

	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, errors.Wrap(err, "decode")
	}

	cfg := f.apply(Default())

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (f *file) apply(c Config) Config {
	if f.Listen != nil {
		c.Listen = *f.Listen
	}
	if f.DataDir != nil {
		c.DataDir = *f.DataDir
	}
	if f.Retention != nil {
		c.Retention = *f.Retention
	}
	if f.FlushInterval != nil {
		c.FlushInterval = *f.FlushInterval
	}
	if f.CleanerInterval != nil {
		c.CleanerInterval = *f.CleanerInterval
	}
	if f.Fallback != nil {
		c.Fallback = *f.Fallback
	}
	if f.UpperCaseFields != nil {
		c.UpperCaseFields = *f.UpperCaseFields
	}
	if f.Tokens != nil {
		c.Tokens = f.Tokens
	}

	return c
}

func (c Config) Validate() error {
	switch {
	case c.Retention < 0:
		return errors.Wrap(ErrInvalid, "negative retention")
	case c.FlushInterval <= 0:
		return errors.Wrap(ErrInvalid, "flush_interval must be positive")
	case c.CleanerInterval <= 0:
		return errors.Wrap(ErrInvalid, "cleaner_interval must be positive")
	}

	for i, t := range c.Tokens {
		if t.Hash == "" {
			return errors.Wrap(ErrInvalid, "token %d (%v) has no hash", i, t.Name)
		}
	}

	return nil
}

// Store keeps the current config. It is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// AuthRequired reports whether any token is configured.
func (s *Store) AuthRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cfg.Tokens) != 0
}

// Authenticate checks token against the configured hashes and returns the
// matching token name. With no tokens configured every request passes.
func (s *Store) Authenticate(token string) (string, bool) {
	s.mu.RLock()
	tokens := s.cfg.Tokens
	s.mu.RUnlock()

	if len(tokens) == 0 {
		return "", true
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	for _, t := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(t.Hash), []byte(token)) == nil {
			return t.Name, true
		}
	}

	return "", false
}

// HashToken returns the bcrypt hash to put in the tokens list.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash token")
	}

	return string(hash), nil
}
