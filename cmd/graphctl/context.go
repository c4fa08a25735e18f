package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ewilliams-labs/songtagger/internal/app"
	"github.com/ewilliams-labs/songtagger/internal/config"
	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool
	out        io.Writer

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verbose: verbose, out: os.Stdout}
}

func (c *commandContext) logger() *slog.Logger {
	if c.verbose == nil || !*c.verbose {
		return logging.NewNop()
	}
	l, err := logging.New(os.Stderr, logging.Options{Level: "debug"})
	if err != nil {
		return logging.NewNop()
	}
	return l
}

// ensureApp loads config and opens the library on first use.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = app.Open(ctx, cfg, c.logger())
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}

func readDefinition(path string) (domain.GraphDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.GraphDefinition{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	def, err := graph.DecodeDefinition(f)
	if err != nil {
		return domain.GraphDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}
