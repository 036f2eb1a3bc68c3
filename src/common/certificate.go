package common

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// WebDir is the directory, relative to the site root, that holds the normalized images
const WebDir = "certificates"

// CertificateRecord is one processed image as the gallery page sees it
type CertificateRecord struct {
	Filename     string
	RelativePath string
}

// Manifest is the ordered list of records produced by a normalize run
type Manifest []CertificateRecord

// NewCertificateRecord creates the record for a normalized file
func NewCertificateRecord(filename string) CertificateRecord {
	return CertificateRecord{
		Filename:     filename,
		RelativePath: path.Join(WebDir, filename),
	}
}

// DisplayName returns the filename without extension, with underscores and hyphens as spaces
func (r CertificateRecord) DisplayName() string {
	name := strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

// Anchor returns a URL-friendly id for linking to a single certificate
func (r CertificateRecord) Anchor() string {
	s := slug.Make(r.DisplayName())
	if s == "" {
		s = "certificate"
	}
	return "cert-" + s
}
