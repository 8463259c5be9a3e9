package showcaseapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
	"github.com/trezcool/showcase/core/staging"
	"github.com/trezcool/showcase/services/showcaseapi"
	testutil "github.com/trezcool/showcase/tests"
)

func setup(t *testing.T) (*showcaseapi.Client, *testutil.Backend) {
	backend := testutil.NewBackend(t)
	backend.Token = testutil.Token(t, "u1")
	client := showcaseapi.New(backend.URL(), backend.Token, &http.Client{Timeout: 5 * time.Second}, core.NewMemLogger())
	return client, backend
}

func TestClient_SearchUsers(t *testing.T) {
	client, backend := setup(t)
	ana := backend.AddUser(contributor.User{FullName: "Ana Lukusa", Email: "ana@example.com"})
	backend.AddUser(contributor.User{FullName: "Bob Ilunga"})

	users, err := client.SearchUsers(context.Background(), "luku")
	require.NoError(t, err)
	assert.Equal(t, []contributor.User{ana}, users)
	assert.Equal(t, 1, backend.Calls(testutil.RouteSearchUsers))

	users, err = client.SearchUsers(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestClient_auth(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Token = testutil.Token(t, "u1")
	client := showcaseapi.New(backend.URL(), "wrong", nil, core.NewMemLogger())

	_, err := client.SearchUsers(context.Background(), "ana")
	var apiErr *showcaseapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_UploadProject(t *testing.T) {
	client, backend := setup(t)
	backend.AddUser(contributor.User{ID: "u1", FullName: "Ana Lukusa", Email: "ana@example.com"})

	d := project.NewDraft()
	d.Category = project.CategoryCoursework
	d.Title, d.Description = "Demo", "desc"
	d.Tags = []string{"go"}
	d.CoverImage = staging.NewFile("cover.png", testutil.PNG(t, 8, 8))
	d.Fields, _ = project.FromValues(project.CategoryCoursework, map[string]string{"courseCode": "CS101", "courseName": "Intro"})
	d.Contributors = []contributor.Ref{{UserID: "u2"}}

	composer := project.NewComposer(client, core.NewMemLogger())
	req, err := composer.Compose(d)
	require.NoError(t, err)
	id, err := composer.Submit(context.Background(), "u1", req)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "u1", uploads[0].UserID)
	assert.Equal(t, []string{"CS101"}, uploads[0].Values["courseCode"])
	assert.Equal(t, []string{`[{"user_id":"u2"}]`}, uploads[0].Values[project.SlotContributors])
	assert.Equal(t, []string{"cover.png"}, uploads[0].Files[project.SlotCoverImage])

	p, ok := backend.Project(id)
	require.True(t, ok)
	assert.Equal(t, project.StatusPending, p.Status)
	assert.Equal(t, []string{"go"}, p.Tags)
	assert.Equal(t, "Ana Lukusa", p.Owner.FullName)

	t.Run("server failure", func(t *testing.T) {
		backend.Fail(testutil.RouteUpload, http.StatusBadGateway)
		defer backend.Recover(testutil.RouteUpload)

		_, err := composer.Submit(context.Background(), "u1", req)
		var sErr *project.SubmissionError
		require.True(t, errors.As(err, &sErr))
		apiErr, ok := errors.Cause(err).(*showcaseapi.APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "injected failure", apiErr.Message)
		assert.Equal(t, 2, backend.Calls(testutil.RouteUpload))
	})
}

func TestClient_review(t *testing.T) {
	client, backend := setup(t)
	now := time.Now().UTC().Truncate(time.Second)
	p1 := backend.AddProject(project.ReviewableProject{
		Title: "Smart Garden", Category: project.CategoryAcademic, CreatedAt: now.Add(-time.Hour),
		Details: map[string]string{"abstract": "abs", "authors": "Ana,Bob"},
	})
	p2 := backend.AddProject(project.ReviewableProject{Title: "RoboCup", Category: project.CategoryCompetition, CreatedAt: now})
	backend.AddProject(project.ReviewableProject{Title: "Old", Status: project.StatusApproved})

	pending, err := client.PendingProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, p1.ID, pending[0].ID)
	assert.True(t, p1.CreatedAt.Equal(pending[0].CreatedAt))

	flds, err := pending[0].CategoryFields()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Bob"}, flds.(*project.AcademicFields).Authors)

	q := review.NewQueue(client, nil, core.NewMemLogger())
	defer q.Close()
	require.NoError(t, q.Load(context.Background()))

	require.NoError(t, q.Approve(context.Background(), p1.ID, "good job"))
	require.NoError(t, q.Load(context.Background()))
	assert.Len(t, q.Items(), 1)
	assert.Equal(t, p2.ID, q.Items()[0].ID)
	assert.Equal(t, []testutil.Review{{ProjectID: p1.ID, Status: project.StatusApproved, Comment: "good job"}}, backend.Reviews())

	t.Run("unknown project", func(t *testing.T) {
		err := client.ReviewProject(context.Background(), review.Decision{ProjectID: "nope", Outcome: project.StatusApproved})
		apiErr, ok := errors.Cause(err).(*showcaseapi.APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "not found", apiErr.Message)
	})

	t.Run("failed decision keeps the item", func(t *testing.T) {
		backend.Fail(testutil.RouteReview, http.StatusServiceUnavailable)
		defer backend.Recover(testutil.RouteReview)

		err := q.Reject(context.Background(), p2.ID, "off topic")
		var aErr *review.ReviewActionError
		require.True(t, errors.As(err, &aErr))
		assert.Len(t, q.Items(), 1)
	})
}

func TestClient_cancellation(t *testing.T) {
	client, backend := setup(t)
	backend.Delay(testutil.RouteSearchUsers, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.SearchUsers(ctx, "ana")
	assert.Error(t, err)
}

func TestUserIDFromToken(t *testing.T) {
	id, err := showcaseapi.UserIDFromToken(testutil.Token(t, "u42"))
	require.NoError(t, err)
	assert.Equal(t, "u42", id)

	_, err = showcaseapi.UserIDFromToken("not-a-token")
	assert.Error(t, err)
}
