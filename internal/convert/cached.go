package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/repo"
)

// Cached memoises conversions by source path, size and mtime.
type Cached struct {
	Next Converter
	Repo repo.Repository
}

func NewCached(next Converter, r repo.Repository) *Cached {
	return &Cached{Next: next, Repo: r}
}

func (c *Cached) Info() Info {
	return c.Next.Info()
}

func (c *Cached) Convert(ctx context.Context, inputPath string) (string, error) {
	src, err := filepath.Abs(inputPath)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(src)
	if err != nil {
		return "", err
	}

	logger := logging.Component("convert").WithField("source", src)
	hit, err := c.Repo.GetConversion(src)
	if err != nil {
		logger.WithError(err).Warn("cache lookup failed")
	} else if hit != nil && hit.Size == st.Size() && hit.ModTime.Equal(st.ModTime()) {
		if _, err := os.Stat(hit.OutputPath); err == nil {
			logger.WithField("output", hit.OutputPath).Debug("cache hit")
			return hit.OutputPath, nil
		}
	}

	out, err := c.Next.Convert(ctx, src)
	if err != nil {
		return "", err
	}
	if hit != nil && hit.OutputPath != out {
		_ = c.Next.Discard(hit.OutputPath)
	}
	err = c.Repo.SaveConversion(&repo.Conversion{
		SourcePath: src,
		Size:       st.Size(),
		ModTime:    st.ModTime(),
		OutputPath: out,
		Converter:  c.Next.Info().Name,
	})
	if err != nil {
		logger.WithError(err).Warn("cache store failed")
	}
	return out, nil
}

// Discard keeps cached outputs; Purge removes them.
func (c *Cached) Discard(string) error {
	return nil
}

// Purge drops every cached conversion and its output file.
func (c *Cached) Purge() error {
	all, err := c.Repo.ListConversions()
	if err != nil {
		return err
	}
	var errs []error
	for _, conv := range all {
		if err := c.Next.Discard(conv.OutputPath); err != nil {
			errs = append(errs, err)
		}
		if err := c.Repo.DeleteConversion(conv.SourcePath); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("purge conversion cache: %w", errors.Join(errs...))
	}
	return nil
}
