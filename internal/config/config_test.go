package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
listen: 127.0.0.1:9000
retention: 2h
fallback: false
upper_case_fields: [gene]
tokens:
  - name: ci
    hash: xxx
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 2*time.Hour, cfg.Retention)
	assert.Equal(t, time.Minute, cfg.FlushInterval)
	assert.Equal(t, 10*time.Minute, cfg.CleanerInterval)
	assert.False(t, cfg.Fallback)
	assert.Equal(t, []string{"gene"}, cfg.UpperCaseFields)
	assert.Equal(t, []Token{{Name: "ci", Hash: "xxx"}}, cfg.Tokens)
}

func TestParseDefaults(t *testing.T) {
	for _, data := range []string{
		"",
		"\n\n",
		"# only a comment\n",
		"---\n# nothing set yet\n",
	} {
		cfg, err := Parse([]byte(data))
		require.NoError(t, err, "%q", data)
		assert.Equal(t, Default(), cfg, "%q", data)
	}

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseExplicitZero(t *testing.T) {
	cfg, err := Parse([]byte("fallback: false\nupper_case_fields: []\nretention: 0s\n"))
	require.NoError(t, err)

	assert.False(t, cfg.Fallback)
	assert.Empty(t, cfg.UpperCaseFields)
	assert.Equal(t, time.Duration(0), cfg.Retention)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestParseInvalid(t *testing.T) {
	for _, data := range []string{
		"flush_interval: 0s",
		"retention: -1h",
		"tokens: [{name: x}]",
	} {
		_, err := Parse([]byte(data))
		assert.ErrorIs(t, err, ErrInvalid, data)
	}

	_, err := Parse([]byte("listen: [a"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	s := NewStore(Default())

	_, ok := s.Authenticate("")
	assert.True(t, ok, "no tokens configured")
	assert.False(t, s.AuthRequired())

	hash, err := HashToken("secret")
	require.NoError(t, err)

	cfg := Default()
	cfg.Tokens = []Token{{Name: "ci", Hash: hash}}
	s.Set(cfg)

	assert.True(t, s.AuthRequired())

	name, ok := s.Authenticate("secret")
	assert.True(t, ok)
	assert.Equal(t, "ci", name)

	_, ok = s.Authenticate("wrong")
	assert.False(t, ok)

	_, ok = s.Authenticate("")
	assert.False(t, ok)

	_, err = HashToken("")
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facetql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: :1\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 16)
	errc := make(chan error, 1)

	go func() {
		errc <- Watch(ctx, path, func(c Config) { got <- c })
	}()

	// the watcher may not be registered yet, so keep writing
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("listen: :2\n"), 0644)

		for {
			select {
			case cfg := <-got:
				if cfg.Listen == ":2" {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}
