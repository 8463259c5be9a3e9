package project

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
	"unicode"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/staging"
)

// Multipart slots of the generic fields.
const (
	SlotTitle        = "title"
	SlotDescription  = "description"
	SlotCategory     = "category"
	SlotStudyYear    = "study_year"
	SlotAcademicYear = "academic_year"
	SlotSemester     = "semester"
	SlotVisibility   = "visibility"
	SlotTags         = "tags"
	SlotVideoLink    = "video_link"
	SlotContributors = "contributors"
	SlotCoverImage   = "cover_image"
	SlotPosterImage  = "poster_image"
	SlotPDFFiles     = "pdf_files"
	SlotPDFNames     = "pdf_names"
)

// SubmissionRequest is a serialized draft, ready to be uploaded.
type SubmissionRequest struct {
	ContentType string
	Body        []byte
}

// Uploader sends a composed submission on behalf of a user and returns the new project ID.
type Uploader interface {
	UploadProject(ctx context.Context, userID string, req *SubmissionRequest) (string, error)
}

// SubmissionError reports a failed upload. The draft it came from is left intact.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submitting project: " + e.Err.Error() }
func (e *SubmissionError) Cause() error  { return e.Err }

// Composer validates drafts, serializes them and uploads the result.
type Composer struct {
	uploader Uploader
	logger   core.Logger
}

func NewComposer(uploader Uploader, logger core.Logger) *Composer {
	return &Composer{uploader: uploader, logger: logger}
}

// Validate reports every field that prevents d from being submitted.
func (c *Composer) Validate(d *ProjectDraft) error {
	return d.Validate()
}

// Compose serializes d into a multipart body. It never touches the network and
// yields the same bytes for the same draft.
func (c *Composer) Compose(d *ProjectDraft) (*SubmissionRequest, error) {
	if err := c.Validate(d); err != nil {
		return nil, err
	}
	parts, err := draftParts(d)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err = w.SetBoundary(boundaryOf(parts)); err != nil {
		return nil, errors.Wrap(err, "setting boundary")
	}
	for _, p := range parts {
		pw, err := w.CreatePart(p.header())
		if err != nil {
			return nil, errors.Wrapf(err, "creating part %s", p.name)
		}
		if _, err = pw.Write(p.data); err != nil {
			return nil, errors.Wrapf(err, "writing part %s", p.name)
		}
	}
	if err = w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing multipart body")
	}
	return &SubmissionRequest{ContentType: w.FormDataContentType(), Body: buf.Bytes()}, nil
}

// Submit uploads req in exactly one call. It never retries.
func (c *Composer) Submit(ctx context.Context, userID string, req *SubmissionRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil submission request")
	}
	id, err := c.uploader.UploadProject(ctx, userID, req)
	if err != nil {
		c.logger.Error("project upload failed", err, core.Person{ID: userID})
		return "", &SubmissionError{Err: err}
	}
	c.logger.Info("project submitted", map[string]interface{}{"project_id": id, "user_id": userID})
	return id, nil
}

type part struct {
	name        string
	filename    string // files only
	contentType string // files only
	data        []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// printable replaces control characters, line breaks included, with spaces so
// that s cannot escape the header it is quoted in.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

func quote(s string) string { return quoteEscaper.Replace(printable(s)) }

func (p part) header() textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	if p.filename == "" {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quote(p.name)))
		return h
	}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quote(p.name), quote(p.filename)))
	h.Set("Content-Type", p.contentType)
	return h
}

func textPart(name, value string) part { return part{name: name, data: []byte(value)} }

func filePart(name string, f *staging.File, filename string) part {
	if filename == "" {
		filename = f.Name
	}
	return part{name: name, filename: filename, contentType: f.ContentType, data: f.Data}
}

type contributorPayload struct {
	UserID string `json:"user_id"`
}

// draftParts lists the parts of d in their serialization order.
func draftParts(d *ProjectDraft) ([]part, error) {
	tags, err := sonic.Marshal(nonNil(d.Tags))
	if err != nil {
		return nil, errors.Wrap(err, "encoding tags")
	}
	contribs := make([]contributorPayload, 0, len(d.Contributors))
	for _, ref := range d.Contributors {
		contribs = append(contribs, contributorPayload{UserID: ref.UserID})
	}
	contribsJSON, err := sonic.Marshal(contribs)
	if err != nil {
		return nil, errors.Wrap(err, "encoding contributors")
	}

	parts := []part{
		textPart(SlotTitle, core.CleanString(d.Title)),
		textPart(SlotDescription, core.CleanString(d.Description)),
		textPart(SlotCategory, string(d.Category)),
		textPart(SlotStudyYear, strconv.Itoa(d.StudyYear)),
		textPart(SlotAcademicYear, d.AcademicYear),
		textPart(SlotSemester, strconv.Itoa(d.Semester)),
		textPart(SlotVisibility, strconv.FormatBool(d.Visibility)),
		textPart(SlotTags, string(tags)),
	}
	if d.VideoLink.Valid {
		parts = append(parts, textPart(SlotVideoLink, d.VideoLink.String))
	}

	// category fields are flattened under their schema keys
	if d.Fields != nil {
		for _, fs := range TextFields(d.Category) {
			if v := d.Fields.Value(fs.Key); v != "" {
				parts = append(parts, textPart(fs.Key, v))
			}
		}
	}
	parts = append(parts, textPart(SlotContributors, string(contribsJSON)))

	parts = append(parts, filePart(SlotCoverImage, d.CoverImage, ""))
	if d.PosterImage != nil {
		parts = append(parts, filePart(SlotPosterImage, d.PosterImage, ""))
	}
	if len(d.PDFFiles) > 0 {
		names := make([]string, 0, len(d.PDFFiles))
		for _, pdf := range d.PDFFiles {
			parts = append(parts, filePart(SlotPDFFiles, pdf.File, pdf.DisplayName))
			names = append(names, pdf.DisplayName)
		}
		namesJSON, err := sonic.Marshal(names)
		if err != nil {
			return nil, errors.Wrap(err, "encoding pdf names")
		}
		parts = append(parts, textPart(SlotPDFNames, string(namesJSON)))
	}
	for _, fs := range FileSlots(d.Category) {
		if f := d.Files[fs.Key]; f != nil {
			parts = append(parts, filePart(fs.Key, f, ""))
		}
	}
	return parts, nil
}

// boundaryOf derives the multipart boundary from the content of parts.
func boundaryOf(parts []part) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00", p.name, p.filename, p.contentType, len(p.data))
		h.Write(p.data)
	}
	return "showcase-" + hex.EncodeToString(h.Sum(nil))[:40]
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
