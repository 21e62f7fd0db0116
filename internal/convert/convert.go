// Package convert turns FSDB dumps into FST files the viewer can open.
//
// A Backend does the actual conversion into a caller-chosen output path. FST wraps a
// Backend with temp-file management, and Cached adds a sqlite-backed memo on top so a
// large dump is only converted once while it stays unchanged on disk.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"wcp-bridge/server/internal/platform/logging"
)

// APIVersion is the only backend API version this build accepts.
const APIVersion = 1

var ErrNotConfigured = errors.New("FSDB plugin path not configured")

type Info struct {
	APIVersion uint32 `json:"api_version"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Vendor     string `json:"vendor"`
}

// Backend writes an FST rendition of the FSDB at in to out.
type Backend interface {
	Info() Info
	ConvertToFST(ctx context.Context, in, out string) error
}

// Converter produces a viewer-readable file for an input path.
type Converter interface {
	Info() Info
	Convert(ctx context.Context, inputPath string) (string, error)
	// Discard releases an output previously returned by Convert.
	Discard(outputPath string) error
}

// IsFSDB reports whether path names an FSDB dump.
func IsFSDB(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".fsdb")
}

// FST runs a Backend into a fresh temp file per conversion.
type FST struct {
	Backend Backend
	TempDir string
}

func NewFST(b Backend, tempDir string) *FST {
	return &FST{Backend: b, TempDir: tempDir}
}

func (c *FST) Info() Info {
	return c.Backend.Info()
}

func (c *FST) Convert(ctx context.Context, inputPath string) (string, error) {
	f, err := os.CreateTemp(c.TempDir, "wcp-fsdb-*.fst")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary output path: %w", err)
	}
	out := f.Name()
	f.Close()

	info := c.Backend.Info()
	logger := logging.Component("convert").WithFields(log.Fields{"backend": info.Name, "source": inputPath})
	logger.Debug("converting")

	if err := c.Backend.ConvertToFST(ctx, inputPath, out); err != nil {
		_ = os.Remove(out)
		logger.WithError(err).Warn("conversion failed")
		return "", err
	}
	logger.WithField("output", out).Info("converted")
	return out, nil
}

func (c *FST) Discard(outputPath string) error {
	if outputPath == "" {
		return nil
	}
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
