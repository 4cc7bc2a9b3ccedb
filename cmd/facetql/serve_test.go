package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coffersTech/facetql/internal/config"
)

func TestRunStopsCleanly(t *testing.T) {
	conf := config.Default()
	conf.Listen = "127.0.0.1:0"
	conf.DataDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	cfg := &ServeConfig{}

	var err error
	assert.NotPanics(t, func() {
		err = cfg.run(ctx, conf)
	})
	assert.NoError(t, err)
}

func TestOverride(t *testing.T) {
	cfg := &ServeConfig{Addr: ":9090"}

	c := cfg.override(config.Default())
	assert.Equal(t, ":9090", c.Listen)
	assert.Equal(t, "data", c.DataDir)
}
