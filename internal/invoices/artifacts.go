package invoices

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
)

// ArtifactStore persists rendered invoice documents on the local filesystem.
// Layout: <root>/pdf/invoice_<id>.pdf (or .html fallback), <root>/xml/invoice_<id>.xml.
type ArtifactStore struct {
	root string
}

// NewArtifactStore builds a store rooted at the configured directory.
func NewArtifactStore(cfg config.ArtifactsConfig) *ArtifactStore {
	return &ArtifactStore{root: cfg.Dir}
}

// SavePDF writes the PDF artifact and returns its path.
func (s *ArtifactStore) SavePDF(invoiceID uuid.UUID, data []byte) (string, error) {
	return s.save("pdf", fmt.Sprintf("invoice_%s.pdf", invoiceID), data)
}

// SaveHTMLFallback writes the fallback rendition used when the PDF engine is
// unavailable. It lives in the pdf directory under an .html extension.
func (s *ArtifactStore) SaveHTMLFallback(invoiceID uuid.UUID, data []byte) (string, error) {
	return s.save("pdf", fmt.Sprintf("invoice_%s.html", invoiceID), data)
}

// SaveXML writes the provider-signed XML artifact and returns its path.
func (s *ArtifactStore) SaveXML(invoiceID uuid.UUID, data []byte) (string, error) {
	return s.save("xml", fmt.Sprintf("invoice_%s.xml", invoiceID), data)
}

func (s *ArtifactStore) save(subdir, name string, data []byte) (string, error) {
	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Open streams a previously recorded artifact. A recorded path whose file has
// gone missing maps to NOT_FOUND rather than an internal error.
func (s *ArtifactStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "artifact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open artifact")
	}
	return f, nil
}

// ReadAll loads a stored artifact fully into memory, for print payloads.
func (s *ArtifactStore) ReadAll(path string) ([]byte, error) {
	rc, err := s.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read artifact")
	}
	return data, nil
}
