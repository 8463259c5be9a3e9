package project

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/staging"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	id    string
	err   error
	gate  chan struct{} // when set, uploads block until it is closed
	last  *SubmissionRequest
}

func (u *fakeUploader) UploadProject(ctx context.Context, userID string, req *SubmissionRequest) (string, error) {
	u.mu.Lock()
	u.calls++
	u.last = req
	gate := u.gate
	u.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return u.id, u.err
}

func (u *fakeUploader) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func pngFile(t *testing.T, name string) *staging.File {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return staging.NewFile(name, buf.Bytes())
}

func pdfFile(name string) *staging.File {
	return staging.NewFile(name, []byte("%PDF-1.4\n%%EOF\n"))
}

func courseworkDraft(t *testing.T) *ProjectDraft {
	d := NewDraft()
	d.Category = CategoryCoursework
	d.Title = "Demo"
	d.Description = "desc"
	d.CoverImage = pngFile(t, "cover.png")
	d.Fields, _ = NewCategoryFields(CategoryCoursework)
	require.NoError(t, d.Fields.Set("courseCode", "CS101"))
	require.NoError(t, d.Fields.Set("courseName", "Intro"))
	return d
}

// readParts decodes a composed body into {name: [values]}.
func readParts(t *testing.T, req *SubmissionRequest) (map[string][]string, map[string][]string) {
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	values := make(map[string][]string)
	filenames := make(map[string][]string)
	r := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		values[p.FormName()] = append(values[p.FormName()], string(data))
		if p.FileName() != "" {
			filenames[p.FormName()] = append(filenames[p.FormName()], p.FileName())
		}
	}
	return values, filenames
}

func TestComposer_Submit_coursework(t *testing.T) {
	uploader := &fakeUploader{id: "prj-1"}
	c := NewComposer(uploader, core.NewMemLogger())

	req, err := c.Compose(courseworkDraft(t))
	require.NoError(t, err)
	id, err := c.Submit(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, "prj-1", id)
	assert.Equal(t, 1, uploader.Calls())
}

func TestComposer_Validate_missingCategoryField(t *testing.T) {
	uploader := &fakeUploader{id: "prj-1"}
	c := NewComposer(uploader, core.NewMemLogger())

	d := NewDraft()
	d.Category = CategoryCompetition
	d.Title = "Robots"
	d.Description = "we built robots"
	d.CoverImage = pngFile(t, "cover.png")
	d.Fields, _ = NewCategoryFields(CategoryCompetition)
	require.NoError(t, d.Fields.Set("competitionName", "RoboCup"))

	req, err := c.Compose(d)
	assert.Nil(t, req)
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok, "want a validation error, got %v", err)
	assert.Equal(t, []string{"competitionLevel"}, vErr.FieldNames())
	assert.Equal(t, "this field is required", vErr.Fields[0].Error)
	assert.Zero(t, uploader.Calls())
}

func TestComposer_Validate_batch(t *testing.T) {
	c := NewComposer(&fakeUploader{}, core.NewMemLogger())

	d := NewDraft()
	d.Category = CategoryAcademic
	d.Fields, _ = NewCategoryFields(CategoryAcademic)

	vErr, ok := core.AsValidationError(c.Validate(d))
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"title", "description", "coverImage", "abstract", "authors"}, vErr.FieldNames())
}

func TestComposer_Compose(t *testing.T) {
	c := NewComposer(&fakeUploader{}, core.NewMemLogger())

	d := courseworkDraft(t)
	d.Tags = []string{"go", "web"}
	d.VideoLink = null.StringFrom("https://videos.example.com/demo")
	d.PosterImage = pngFile(t, "poster.png")
	d.PDFFiles = []PDF{{File: pdfFile("report.pdf"), DisplayName: "Final report"}}
	d.Contributors = []contributor.Ref{{UserID: "u2", FullName: "Ana"}, {UserID: "u3"}}
	require.NoError(t, d.Fields.Set("teamMembers", "Ana, Bob"))

	req, err := c.Compose(d)
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		again, err := c.Compose(d)
		require.NoError(t, err)
		assert.Equal(t, req.ContentType, again.ContentType)
		assert.True(t, bytes.Equal(req.Body, again.Body), "same draft must give the same bytes")
	})

	t.Run("payload", func(t *testing.T) {
		values, filenames := readParts(t, req)

		assert.Equal(t, []string{"Demo"}, values[SlotTitle])
		assert.Equal(t, []string{"coursework"}, values[SlotCategory])
		assert.Equal(t, []string{`["go","web"]`}, values[SlotTags])
		assert.Equal(t, []string{"https://videos.example.com/demo"}, values[SlotVideoLink])
		assert.Equal(t, []string{`[{"user_id":"u2"},{"user_id":"u3"}]`}, values[SlotContributors])

		// category fields are flat
		assert.Equal(t, []string{"CS101"}, values["courseCode"])
		assert.Equal(t, []string{"Intro"}, values["courseName"])
		assert.Equal(t, []string{"Ana,Bob"}, values["teamMembers"])
		assert.NotContains(t, values, "instructor")

		assert.Equal(t, []string{"cover.png"}, filenames[SlotCoverImage])
		assert.Equal(t, []string{"poster.png"}, filenames[SlotPosterImage])
		assert.Equal(t, []string{"Final report"}, filenames[SlotPDFFiles])
		assert.Equal(t, []string{`["Final report"]`}, values[SlotPDFNames])
		assert.Equal(t, []string{string(d.CoverImage.Data)}, values[SlotCoverImage])
	})

	t.Run("category files", func(t *testing.T) {
		a := NewDraft()
		a.Category = CategoryAcademic
		a.Title, a.Description = "Paper", "about"
		a.CoverImage = pngFile(t, "cover.png")
		a.Fields, _ = FromValues(CategoryAcademic, map[string]string{"abstract": "abs", "authors": "Ana"})
		a.Files["paperFile"] = pdfFile("paper.pdf")

		req, err := c.Compose(a)
		require.NoError(t, err)
		_, filenames := readParts(t, req)
		assert.Equal(t, []string{"paper.pdf"}, filenames["paperFile"])
	})

	t.Run("line breaks in names stay inside their header", func(t *testing.T) {
		b := courseworkDraft(t)
		b.PDFFiles = []PDF{{File: pdfFile("r.pdf"), DisplayName: "Report\r\nContent-Type: text/html"}}

		req, err := c.Compose(b)
		require.NoError(t, err)
		values, filenames := readParts(t, req)
		assert.Equal(t, []string{"Report  Content-Type: text/html"}, filenames[SlotPDFFiles])
		assert.Equal(t, []string{string(b.PDFFiles[0].File.Data)}, values[SlotPDFFiles])
	})

	t.Run("does not mutate the draft", func(t *testing.T) {
		before := d.Clone()
		_, err := c.Compose(d)
		require.NoError(t, err)
		assert.Equal(t, before, d)
	})
}

func TestComposer_Submit_failure(t *testing.T) {
	cause := errors.New("502 bad gateway")
	uploader := &fakeUploader{err: cause}
	logger := core.NewMemLogger()
	c := NewComposer(uploader, logger)

	req, err := c.Compose(courseworkDraft(t))
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "u1", req)
	var sErr *SubmissionError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, cause, errors.Cause(err))
	assert.Equal(t, 1, uploader.Calls(), "no implicit retry")
	assert.Len(t, logger.Entries("error"), 1)
}
