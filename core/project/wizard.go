package project

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/staging"
)

// Steps
const (
	StepSelectCategory Step = iota
	StepStageMedia
	StepEnterDetails
	StepAttachContributors
)

// Generic file fields.
const (
	FieldCoverImage  = "coverImage"
	FieldPosterImage = "posterImage"
)

var (
	ErrLastStep         = errors.New("already at the last step")
	ErrNotLastStep      = errors.New("submit is only available from the last step")
	ErrSubmitInFlight   = errors.New("a submission is already in flight")
	ErrAlreadySubmitted = errors.New("draft already submitted")
	ErrNoCategory       = errors.New("choose a category first")
	ErrWizardClosed     = errors.New("wizard closed")
)

type Step int

func (s Step) String() string {
	switch s {
	case StepSelectCategory:
		return "category"
	case StepStageMedia:
		return "media"
	case StepEnterDetails:
		return "details"
	case StepAttachContributors:
		return "contributors"
	default:
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
}

// stepFields returns the draft keys whose errors block leaving step.
func stepFields(step Step, c Category) []string {
	switch step {
	case StepSelectCategory:
		return []string{"category"}
	case StepStageMedia:
		keys := []string{FieldCoverImage, FieldPosterImage, "videoLink", staging.PDFField}
		for _, fs := range FileSlots(c) {
			keys = append(keys, fs.Key)
		}
		return keys
	case StepEnterDetails:
		keys := []string{"title", "description", "studyYear", "academicYear", "semester", "tags"}
		for _, fs := range TextFields(c) {
			keys = append(keys, fs.Key)
		}
		return keys
	case StepAttachContributors:
		return []string{"contributors"}
	}
	return nil
}

// Wizard walks a user through filling one draft, step by step, and submits it.
// It owns the draft and the resources staged for it until Close.
type Wizard struct {
	composer  *Composer
	stager    *staging.Manager
	directory *contributor.Directory
	logger    core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	step       Step
	draft      *ProjectDraft
	submitting bool
	projectID  string
	closed     bool
}

func NewWizard(composer *Composer, stager *staging.Manager, directory *contributor.Directory, logger core.Logger) *Wizard {
	stager.Declare(FieldCoverImage, staging.KindImage)
	stager.Declare(FieldPosterImage, staging.KindImage)
	ctx, cancel := context.WithCancel(context.Background())
	return &Wizard{
		composer:  composer,
		stager:    stager,
		directory: directory,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		draft:     NewDraft(),
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a snapshot of the draft.
func (w *Wizard) Draft() *ProjectDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Clone()
}

// Advance moves to the next step when the current one is complete. Otherwise it
// returns a *core.ValidationError listing the unmet fields of the current step.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if w.step == StepAttachContributors {
		return ErrLastStep
	}
	if err := w.stepErrorLocked(w.step); err != nil {
		return err
	}
	w.step++
	return nil
}

// Retreat moves to the previous step, keeping everything entered so far.
func (w *Wizard) Retreat() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepSelectCategory {
		w.step--
	}
}

// StepErrors reports the unmet fields of step without moving.
func (w *Wizard) StepErrors(step Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepErrorLocked(step)
}

func (w *Wizard) stepErrorLocked(step Step) error {
	err := w.draft.Validate()
	if err == nil {
		return nil
	}
	vErr, ok := core.AsValidationError(err)
	if !ok {
		return err
	}
	keys := stepFields(step, w.draft.Category)
	var flds []core.FieldError
	for _, fe := range vErr.Fields {
		if containsKey(keys, fe.Field) {
			flds = append(flds, fe)
		}
	}
	if len(flds) == 0 {
		return nil
	}
	return core.NewValidationError(nil, flds...)
}

// containsKey matches fld against keys, ignoring any element index (tags[2] is tags).
func containsKey(keys []string, fld string) bool {
	if i := strings.IndexByte(fld, '['); i >= 0 {
		fld = fld[:i]
	}
	for _, k := range keys {
		if k == fld {
			return true
		}
	}
	return false
}

// SetCategory selects the category of the draft. Changing it discards every
// category-specific field and file, keys the two categories share included,
// keeps the generic media, and brings a wizard past the media step back to it.
func (w *Wizard) SetCategory(c Category) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if c == w.draft.Category {
		return nil
	}
	flds, err := NewCategoryFields(c)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "category", Error: "unknown category"})
	}

	for _, fs := range FileSlots(w.draft.Category) {
		w.stager.Forget(fs.Key)
	}
	for _, fs := range FileSlots(c) {
		w.stager.Declare(fs.Key, fs.stagingKind())
	}
	w.draft.Category = c
	w.draft.Fields = flds
	w.draft.Files = make(map[string]*staging.File)

	if w.step > StepStageMedia {
		w.step = StepStageMedia
	}
	return nil
}

// SetField stores a text value, generic or category-specific, parsed after its key.
func (w *Wizard) SetField(key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	d := w.draft
	switch key {
	case "title":
		d.Title = value
	case "description":
		d.Description = value
	case "studyYear", "semester":
		n, err := strconv.Atoi(core.CleanString(value))
		if err != nil {
			return fieldError(key, "must be a number")
		}
		if key == "studyYear" {
			d.StudyYear = n
		} else {
			d.Semester = n
		}
	case "academicYear":
		d.AcademicYear = core.CleanString(value)
	case "tags":
		d.Tags = core.SplitList(value)
	case "videoLink":
		if v := core.CleanString(value); v != "" {
			d.VideoLink = null.StringFrom(v)
		} else {
			d.VideoLink = null.String{}
		}
	default:
		if d.Fields == nil {
			return ErrNoCategory
		}
		return d.Fields.Set(key, value)
	}
	return nil
}

// SetVisibility sets whether the project is publicly listed once approved.
func (w *Wizard) SetVisibility(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Visibility = visible
}

// SetFile stages f under a generic or category-specific file field; nil clears it.
func (w *Wizard) SetFile(key string, f *staging.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if err := w.stager.SetField(key, f); err != nil {
		return err
	}
	switch key {
	case FieldCoverImage:
		w.draft.CoverImage = f
	case FieldPosterImage:
		w.draft.PosterImage = f
	default:
		if f == nil {
			delete(w.draft.Files, key)
		} else {
			w.draft.Files[key] = f
		}
	}
	return nil
}

// AddPDF stages one more document. A blank display name falls back to the file name.
func (w *Wizard) AddPDF(f *staging.File, displayName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if err := w.stager.AddPDF(f); err != nil {
		return err
	}
	if displayName = core.CleanString(printable(displayName)); displayName == "" {
		displayName = f.Name
	}
	w.draft.PDFFiles = append(w.draft.PDFFiles, PDF{File: f, DisplayName: displayName})
	return nil
}

func (w *Wizard) RemovePDF(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if err := w.stager.RemovePDF(i); err != nil {
		return err
	}
	w.draft.PDFFiles = append(w.draft.PDFFiles[:i], w.draft.PDFFiles[i+1:]...)
	return nil
}

// Preview returns the preview URL of a staged file field.
func (w *Wizard) Preview(key string) string { return w.stager.Preview(key) }

func (w *Wizard) PDFPreviews() []string { return w.stager.PDFPreviews() }

// Contributors

func (w *Wizard) SearchContributors(keyword string) *contributor.Query {
	return w.directory.Search(keyword)
}

func (w *Wizard) Candidates() []contributor.User { return w.directory.Candidates() }

func (w *Wizard) SearchWarning() string { return w.directory.Warning() }

func (w *Wizard) AddContributor(usr contributor.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.directory.Select(usr)
	w.draft.Contributors = w.directory.Selected()
}

func (w *Wizard) RemoveContributor(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.directory.Remove(userID)
	w.draft.Contributors = w.directory.Selected()
}

// Submit composes the draft and uploads it for userID. It is only available from
// the last step and cannot be re-entered while a submission is in flight.
// A failed submission keeps the draft so the user may try again.
// Closing the wizard cancels the upload; its outcome is then ignored.
func (w *Wizard) Submit(ctx context.Context, userID string) (string, error) {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return "", ErrWizardClosed
	case w.submitting:
		w.mu.Unlock()
		return "", ErrSubmitInFlight
	case w.projectID != "":
		w.mu.Unlock()
		return "", ErrAlreadySubmitted
	case w.step != StepAttachContributors:
		w.mu.Unlock()
		return "", ErrNotLastStep
	}
	req, err := w.composer.Compose(w.draft)
	if err != nil {
		w.mu.Unlock()
		return "", err
	}
	w.submitting = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	id, err := w.composer.Submit(ctx, userID, req)
	stop()
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if w.closed {
		return "", ErrWizardClosed
	}
	if err != nil {
		return "", err
	}
	w.projectID = id
	return id, nil
}

// Submitting reports whether a submission is in flight.
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Close releases every staged preview and cancels any contributor search or
// upload in flight.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.cancel()
	w.stager.Dispose()
	w.directory.Close()
}
