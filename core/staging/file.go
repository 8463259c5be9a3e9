package staging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

const ContentTypePDF = "application/pdf"

// Kind is the kind of content a file field accepts.
type Kind int

const (
	KindImage Kind = iota + 1
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// File is a binary selected by the user and not uploaded yet.
type File struct {
	Name        string
	ContentType string // sniffed from Data, never trusted from the caller
	Data        []byte
}

// NewFile wraps raw bytes, detecting their content type.
func NewFile(name string, data []byte) *File {
	return &File{
		Name:        filepath.Base(name),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}
}

// ReadFile stages the content of r under name.
func ReadFile(name string, r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return NewFile(name, data), nil
}

// Open stages the file found at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()
	return ReadFile(path, f)
}

func (f *File) Size() int64 { return int64(len(f.Data)) }

// IsImage reports whether the sniffed content type is an image.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

func (f *File) IsPDF() bool {
	return f.ContentType == ContentTypePDF
}
