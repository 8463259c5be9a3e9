package staging

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp" // register the webp decoder

	"github.com/trezcool/showcase/core"
)

// PDFField is the key under which staged PDF documents are reported.
const PDFField = "pdfFiles"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnknownField        = errors.New("unknown file field")
	ErrPDFIndex            = errors.New("pdf index out of range")
	ErrDisposed            = errors.New("staging manager disposed")
)

type Options struct {
	MaxImageBytes    int64 // 0 means no limit
	MaxDocumentBytes int64 // 0 means no limit
	MaxImagePixels   int   // width × height; 0 means no limit
	PreviewSize      int   // image thumbnails fit in a PreviewSize square; 0 keeps the original
}

// Manager keeps one preview URL per staged file field and per staged PDF.
// A URL lives exactly as long as its file stays staged: replacing, clearing
// or disposing releases it.
type Manager struct {
	registry URLRegistry
	opts     Options

	mu          sync.Mutex
	kinds       map[string]Kind
	previews    map[string]string // {field: url}
	pdfPreviews []string
	disposed    bool
}

func NewManager(registry URLRegistry, opts Options) *Manager {
	return &Manager{
		registry: registry,
		opts:     opts,
		kinds:    make(map[string]Kind),
		previews: make(map[string]string),
	}
}

// Declare registers a file field and the kind of content it accepts.
func (m *Manager) Declare(field string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[field] = kind
}

// Forget releases the previews of fields and stops accepting files for them.
func (m *Manager) Forget(fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, field := range fields {
		m.releaseLocked(field)
		delete(m.kinds, field)
	}
}

// SetField stages f under field, or clears the field when f is nil.
// Rejected files leave the field and its preview untouched.
func (m *Manager) SetField(field string, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	kind, ok := m.kinds[field]
	if !ok {
		return errors.Wrap(ErrUnknownField, field)
	}
	if f == nil {
		m.releaseLocked(field)
		return nil
	}

	ct, data, err := m.previewContent(field, kind, f)
	if err != nil {
		return err
	}
	m.releaseLocked(field)
	m.previews[field] = m.registry.Create(ct, data)
	return nil
}

// AddPDF stages one more PDF document.
func (m *Manager) AddPDF(f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	if f == nil {
		return errors.Wrap(ErrUnsupportedFileType, "nil file")
	}
	ct, data, err := m.previewContent(PDFField, KindDocument, f)
	if err != nil {
		return err
	}
	m.pdfPreviews = append(m.pdfPreviews, m.registry.Create(ct, data))
	return nil
}

// RemovePDF unstages the PDF at index i.
func (m *Manager) RemovePDF(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	if i < 0 || i >= len(m.pdfPreviews) {
		return errors.Wrapf(ErrPDFIndex, "index %d", i)
	}
	m.registry.Revoke(m.pdfPreviews[i])
	m.pdfPreviews = append(m.pdfPreviews[:i], m.pdfPreviews[i+1:]...)
	return nil
}

// Preview returns the preview URL of field, or "" when nothing is staged.
func (m *Manager) Preview(field string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previews[field]
}

// PDFPreviews returns the preview URLs of the staged PDFs, in staging order.
func (m *Manager) PDFPreviews() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, len(m.pdfPreviews))
	copy(urls, m.pdfPreviews)
	return urls
}

// Dispose releases every outstanding preview URL. It is safe to call more than once.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	for field := range m.previews {
		m.releaseLocked(field)
	}
	for _, url := range m.pdfPreviews {
		m.registry.Revoke(url)
	}
	m.pdfPreviews = nil
	m.disposed = true
}

func (m *Manager) releaseLocked(field string) {
	if url, ok := m.previews[field]; ok {
		m.registry.Revoke(url)
		delete(m.previews, field)
	}
}

// previewContent checks f against kind and returns what its preview should show.
func (m *Manager) previewContent(field string, kind Kind, f *File) (string, []byte, error) {
	switch kind {
	case KindImage:
		if !f.IsImage() {
			return "", nil, unsupported(field, "only image files are allowed")
		}
		if err := checkSize(field, f, m.opts.MaxImageBytes); err != nil {
			return "", nil, err
		}
		if err := m.checkDimensions(field, f); err != nil {
			return "", nil, err
		}
		thumb, err := m.thumbnail(f)
		if err != nil {
			return "", nil, unsupported(field, "the image could not be read")
		}
		return "image/png", thumb, nil
	case KindDocument:
		if !f.IsPDF() {
			return "", nil, unsupported(field, "only PDF documents are allowed")
		}
		if err := checkSize(field, f, m.opts.MaxDocumentBytes); err != nil {
			return "", nil, err
		}
		return f.ContentType, f.Data, nil
	default:
		return "", nil, errors.Wrap(ErrUnknownField, field)
	}
}

func (m *Manager) thumbnail(f *File) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if size := m.opts.PreviewSize; size > 0 {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// checkDimensions reads the image header only, so oversized images are
// rejected before any pixel is decoded.
func (m *Manager) checkDimensions(field string, f *File) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return unsupported(field, "the image could not be read")
	}
	if limit := m.opts.MaxImagePixels; limit > 0 && cfg.Width*cfg.Height > limit {
		msg := fmt.Sprintf("image is %d×%d, above the %d pixel limit", cfg.Width, cfg.Height, limit)
		return core.NewValidationError(ErrFileTooLarge, core.FieldError{Field: field, Error: msg})
	}
	return nil
}

func checkSize(field string, f *File, limit int64) error {
	if limit > 0 && f.Size() > limit {
		msg := fmt.Sprintf("file exceeds the %s limit", humanSize(limit))
		return core.NewValidationError(ErrFileTooLarge, core.FieldError{Field: field, Error: msg})
	}
	return nil
}

func unsupported(field, msg string) error {
	return core.NewValidationError(ErrUnsupportedFileType, core.FieldError{Field: field, Error: msg})
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
