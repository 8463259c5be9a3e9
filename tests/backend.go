package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/project"
)

// Routes, as counted by Backend.Calls.
const (
	RouteSearchUsers = "search_users"
	RouteUpload      = "upload_project"
	RoutePending     = "pending_projects"
	RouteReview      = "review_project"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// Upload is a project received by the fake backend.
type Upload struct {
	UserID    string
	ProjectID string
	Values    map[string][]string
	Files     map[string][]string // {slot: [filenames]}
}

// Review is a decision received by the fake backend.
type Review struct {
	ProjectID string
	Status    project.Status `json:"status"`
	Comment   string         `json:"comment"`
}

// Backend is an in-memory showcase API served over HTTP.
type Backend struct {
	Token string // when set, requests must carry it as a bearer token

	mu       sync.RWMutex
	users    []contributor.User
	projects []project.ReviewableProject
	uploads  []Upload
	reviews  []Review
	calls    map[string]int
	failures map[string]int // {route: status code}
	delays   map[string]time.Duration

	app    *echo.Echo
	server *httptest.Server
}

// NewBackend starts a fake API, stopped when the test ends.
func NewBackend(t *testing.T) *Backend {
	b := &Backend{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		app:      echo.New(),
	}
	b.setup()
	b.server = httptest.NewServer(b.app)
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) setup() {
	b.app.HideBanner = true
	b.app.HidePort = true
	b.app.Logger.SetLevel(log.ERROR)
	b.app.JSONSerializer = sonicSerializer{}
	b.app.HTTPErrorHandler = errorHandler

	b.app.Pre(middleware.RemoveTrailingSlash())
	b.app.Use(middleware.Recover())
	b.app.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(echo.Context) bool { return b.Token == "" },
		Validator: func(key string, _ echo.Context) (bool, error) {
			return key == b.Token, nil
		},
	}))

	b.app.GET("/search/users", b.searchUsers, b.route(RouteSearchUsers))
	b.app.POST("/projects/upload/:userId", b.uploadProject, b.route(RouteUpload))
	b.app.GET("/projects/pending", b.pendingProjects, b.route(RoutePending))
	b.app.POST("/projects/:id/review", b.reviewProject, b.route(RouteReview))
}

func (b *Backend) URL() string { return b.server.URL }

// route counts calls and plays injected failures and delays.
func (b *Backend) route(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			b.mu.Lock()
			b.calls[name]++
			code := b.failures[name]
			delay := b.delays[name]
			b.mu.Unlock()

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Request().Context().Done():
					return ctx.Request().Context().Err()
				}
			}
			if code != 0 {
				return echo.NewHTTPError(code, "injected failure")
			}
			return next(ctx)
		}
	}
}

// Fail makes every call to route answer with code, until Recover.
func (b *Backend) Fail(route string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = code
}

func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Delay holds every call to route for d before handling it.
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

func (b *Backend) Calls(route string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[route]
}

func (b *Backend) AddUser(usr contributor.User) contributor.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	b.users = append(b.users, usr)
	return usr
}

// AddProject stores p, pending unless stated otherwise.
func (b *Backend) AddProject(p project.ReviewableProject) project.ReviewableProject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = project.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	b.projects = append(b.projects, p)
	return p
}

func (b *Backend) Project(id string) (project.ReviewableProject, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.projects {
		if p.ID == id {
			return p, true
		}
	}
	return project.ReviewableProject{}, false
}

func (b *Backend) Uploads() []Upload {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) Reviews() []Review {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Review(nil), b.reviews...)
}

// handlers

func (b *Backend) searchUsers(ctx echo.Context) error {
	keyword := core.CleanString(ctx.QueryParam("keyword"))

	b.mu.RLock()
	defer b.mu.RUnlock()
	found := make([]contributor.User, 0)
	if keyword != "" {
		for _, usr := range b.users {
			if core.ContainsFold(usr.FullName, keyword) || core.ContainsFold(usr.Email, keyword) {
				found = append(found, usr)
			}
		}
	}
	return ctx.JSON(http.StatusOK, found)
}

func (b *Backend) uploadProject(ctx echo.Context) error {
	userID := ctx.Param("userId")
	form, err := ctx.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	var missing []core.FieldError
	for _, key := range []string{project.SlotTitle, project.SlotDescription, project.SlotCategory} {
		if value(key) == "" {
			missing = append(missing, core.FieldError{Field: key, Error: "this field is required"})
		}
	}
	if len(form.File[project.SlotCoverImage]) == 0 {
		missing = append(missing, core.FieldError{Field: project.SlotCoverImage, Error: "this field is required"})
	}
	if len(missing) > 0 {
		return core.NewValidationError(nil, missing...)
	}
	category, err := project.ParseCategory(value(project.SlotCategory))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: project.SlotCategory, Error: "unknown category"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	owner := project.Owner{ID: userID}
	for _, usr := range b.users {
		if usr.ID == userID {
			owner = project.Owner{ID: usr.ID, FullName: usr.FullName, Email: usr.Email}
		}
	}
	details := make(map[string]string)
	for _, fs := range project.TextFields(category) {
		if v := value(fs.Key); v != "" {
			details[fs.Key] = v
		}
	}
	files := make(map[string][]string, len(form.File))
	for slot, fhs := range form.File {
		for _, fh := range fhs {
			files[slot] = append(files[slot], fh.Filename)
		}
	}

	p := project.ReviewableProject{
		ID:          uuid.NewString(),
		Title:       value(project.SlotTitle),
		Description: value(project.SlotDescription),
		Category:    category,
		Status:      project.StatusPending,
		Tags:        splitTags(value(project.SlotTags)),
		Owner:       owner,
		Details:     details,
		CreatedAt:   time.Now().UTC(),
	}
	b.projects = append(b.projects, p)
	b.uploads = append(b.uploads, Upload{UserID: userID, ProjectID: p.ID, Values: form.Value, Files: files})
	return ctx.JSON(http.StatusCreated, echo.Map{"id": p.ID})
}

func (b *Backend) pendingProjects(ctx echo.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pending := make([]project.ReviewableProject, 0)
	for _, p := range b.projects {
		if p.Status == project.StatusPending {
			pending = append(pending, p)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return ctx.JSON(http.StatusOK, pending)
}

// reviewProject applies any decision it receives: the last one wins.
func (b *Backend) reviewProject(ctx echo.Context) error {
	var rvw Review
	if err := ctx.Bind(&rvw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review")
	}
	rvw.ProjectID = ctx.Param("id")
	if rvw.Status != project.StatusApproved && rvw.Status != project.StatusRejected {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be approved or rejected"})
	}
	if rvw.Status == project.StatusRejected && core.CleanString(rvw.Comment) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "comment", Error: "this field is required"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.projects {
		if b.projects[i].ID == rvw.ProjectID {
			b.projects[i].Status = rvw.Status
			b.reviews = append(b.reviews, rvw)
			return ctx.NoContent(http.StatusNoContent)
		}
	}
	return errHttpNotFound
}

// splitTags reads the JSON array of tags sent by the client.
func splitTags(raw string) []string {
	var tags []string
	if err := sonic.UnmarshalString(raw, &tags); err != nil {
		return nil
	}
	return tags
}

// errorHandler renders errors as {"error": "..."} or as {field: message} for validation errors.
func errorHandler(err error, ctx echo.Context) {
	var code int
	var message interface{}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		code = origErr.Code
		message = origErr.Message
	case *core.ValidationError:
		fldErrs := make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
		code = http.StatusBadRequest
		message = fldErrs
	default:
		code = http.StatusInternalServerError
		message = http.StatusText(code)
	}
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	if !ctx.Response().Committed {
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
