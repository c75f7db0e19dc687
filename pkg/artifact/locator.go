// Package artifact finds and loads the JSON artifacts that Solidity build
// tools write for each compiled source file.
package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"scope/pkg/logger"
	"scope/pkg/metrics"
	"scope/pkg/models"
	"scope/pkg/workspace"
)

// Ext is the suffix of an artifact file.
const Ext = ".json"

// DefaultBuildDirs are searched in order: forge's native output directory,
// then the directory the hardhat-foundry plugin writes to.
var DefaultBuildDirs = []string{"out", "artifacts/.foundry"}

// DirLister lists a directory's entries.
type DirLister interface {
	ReadDir(name string) ([]fs.DirEntry, error)
}

type osDirLister struct{}

func (osDirLister) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// Locator maps open Solidity files to the artifacts built from them.
type Locator struct {
	buildDirs []string
	lister    DirLister
	logger    *zap.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithBuildDirs replaces the candidate build directories.
func WithBuildDirs(dirs ...string) Option {
	return func(l *Locator) { l.buildDirs = dirs }
}

// WithDirLister replaces the directory lister (os.ReadDir by default).
func WithDirLister(lister DirLister) Option {
	return func(l *Locator) { l.lister = lister }
}

// NewLocator creates a Locator. A nil logger uses the global logger.
func NewLocator(log *zap.Logger, opts ...Option) *Locator {
	l := &Locator{
		buildDirs: DefaultBuildDirs,
		lister:    osDirLister{},
		logger:    logger.OrGlobal(log).Named("artifact"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the deduplicated artifact locations for the open files.
// A workspace without folders yields an empty list.
func (l *Locator) Locate(ctx context.Context, ws workspace.Context, openFiles []string) []string {
	found := l.Find(ctx, ws, openFiles)
	locations := make([]string, 0, len(found))
	for _, a := range found {
		locations = append(locations, a.Location)
	}
	return locations
}

// Find is Locate with the source file and build directory of each artifact.
// When two candidates yield the same location the first one is kept.
func (l *Locator) Find(ctx context.Context, ws workspace.Context, openFiles []string) []models.Artifact {
	_, span := otel.Tracer("scope").Start(ctx, "artifact.locate")
	defer span.End()

	artifacts := []models.Artifact{}
	root, ok := ws.Root()
	if !ok {
		l.logger.Debug("No workspace folder; nothing to search")
		return artifacts
	}

	sources := workspace.FilterSolidity(openFiles)
	seen := make(map[string]struct{})
	for _, dir := range l.buildDirs {
		for _, source := range sources {
			for _, location := range l.listArtifacts(filepath.Join(root, dir, source)) {
				if _, dup := seen[location]; dup {
					continue
				}
				seen[location] = struct{}{}
				artifacts = append(artifacts, models.Artifact{
					Location: location,
					Source:   source,
					BuildDir: dir,
				})
			}
		}
	}

	span.SetAttributes(
		attribute.Int("artifact.sources", len(sources)),
		attribute.Int("artifact.count", len(artifacts)),
	)
	metrics.ArtifactsLocated.Observe(float64(len(artifacts)))
	return artifacts
}

// listArtifacts returns the JSON files directly inside dir. Listing errors
// count as an empty directory; a missing directory is the normal state
// before the first build.
func (l *Locator) listArtifacts(dir string) []string {
	entries, err := l.lister.ReadDir(dir)
	if err != nil {
		notExist := errors.Is(err, fs.ErrNotExist)
		metrics.RecordListError(notExist)
		if notExist {
			l.logger.Debug("Build directory not found", zap.String("dir", dir))
		} else {
			l.logger.Warn("Failed to list build directory", zap.String("dir", dir), zap.Error(err))
		}
		return nil
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}
