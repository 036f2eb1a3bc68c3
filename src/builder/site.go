package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"certgallery/src/common"
	"certgallery/src/config"
)

// Status is the terminal outcome of a build
type Status int

const (
	// StatusBuilt means images were written and the page was rendered
	StatusBuilt Status = iota
	// StatusEmpty means no usable image was found; no page was written
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusBuilt:
		return "built"
	case StatusEmpty:
		return "empty"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// BuildResult summarizes one build run
type BuildResult struct {
	Status   Status
	Records  common.Manifest
	Failures []*common.DecodeError
	PagePath string
}

// SiteBuilder runs the normalize + render pipeline into the target directory
type SiteBuilder struct {
	cfg        *config.Config
	normalizer *common.Normalizer
	log        *log.Logger

	// serializes builds triggered by the watcher
	mu sync.Mutex
}

// NewSiteBuilder creates a new site builder
func NewSiteBuilder(cfg *config.Config, logger *log.Logger) *SiteBuilder {
	return &SiteBuilder{
		cfg:        cfg,
		normalizer: common.NewNormalizer(cfg, logger),
		log:        logger,
	}
}

// Build normalizes the source images into <target>/certificates and renders
// <target>/index.html. Images left in <target>/certificates by sources that are
// gone are removed. When there is nothing to show, the page is not written, a
// page from an earlier build is removed, and the result has StatusEmpty.
func (b *SiteBuilder) Build() (*BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	normalized, err := b.normalizer.Normalize(b.cfg.SourceDir, b.cfg.CertificatesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to normalize images: %w", err)
	}

	if err := b.pruneStale(normalized.Records); err != nil {
		return nil, fmt.Errorf("failed to remove stale certificates: %w", err)
	}

	result := &BuildResult{
		Records:  normalized.Records,
		Failures: normalized.Failures,
	}

	if len(normalized.Records) == 0 {
		b.log.Warn("No certificate images found, gallery page not generated", "source", b.cfg.SourceDir)
		if err := removeIfExists(b.cfg.PagePath()); err != nil {
			return nil, err
		}
		result.Status = StatusEmpty
		return result, nil
	}

	pagePath := b.cfg.PagePath()
	if err := RenderPage(normalized.Records, pagePath, b.cfg.Page); err != nil {
		return nil, fmt.Errorf("failed to generate gallery page: %w", err)
	}

	result.Status = StatusBuilt
	result.PagePath = pagePath
	b.log.Info("✅ Gallery page generated", "path", pagePath, "certificates", len(normalized.Records))
	return result, nil
}

// pruneStale deletes images in the certificates folder that are not in records
func (b *SiteBuilder) pruneStale(records common.Manifest) error {
	keep := make(map[string]bool, len(records))
	for _, r := range records {
		keep[r.Filename] = true
	}

	dir := b.cfg.CertificatesDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &common.FilesystemError{Op: "read directory", Path: dir, Err: err}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || keep[name] || !common.IsImageFile(name) {
			continue
		}
		if err := removeIfExists(filepath.Join(dir, name)); err != nil {
			return err
		}
		b.log.Info("🗑️  Removed stale certificate", "file", name)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &common.FilesystemError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Rebuild runs Build and only reports errors, for use as a watcher callback
func (b *SiteBuilder) Rebuild() error {
	_, err := b.Build()
	return err
}
