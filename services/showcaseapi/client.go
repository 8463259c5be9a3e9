package showcaseapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
)

// Endpoints
const (
	pathSearchUsers     = "/search/users"
	pathUploadProject   = "/projects/upload/%s"
	pathPendingProjects = "/projects/pending"
	pathReviewProject   = "/projects/%s/review"
)

// APIError is a response outside of the 2xx range.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("showcase api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("showcase api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the showcase REST API.
type Client struct {
	baseURL string
	token   string
	rest    *rest.Client
	logger  core.Logger
}

var (
	_ contributor.Searcher = (*Client)(nil)
	_ project.Uploader     = (*Client)(nil)
	_ review.Backend       = (*Client)(nil)
)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return New(conf.API.BaseURL, conf.API.Token, &http.Client{Timeout: conf.API.Timeout}, logger)
}

// New returns a client for the API rooted at baseURL. A nil httpClient means http.DefaultClient.
func New(baseURL, token string, httpClient *http.Client, logger core.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		rest:    &rest.Client{HTTPClient: httpClient},
		logger:  logger,
	}
}

func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]contributor.User, error) {
	res, err := c.send(ctx, rest.Request{
		Method:      rest.Get,
		BaseURL:     c.baseURL + pathSearchUsers,
		QueryParams: map[string]string{"keyword": keyword},
	})
	if err != nil {
		return nil, err
	}
	var users []contributor.User
	if err = decode(res, &users); err != nil {
		return nil, err
	}
	return users, nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (c *Client) UploadProject(ctx context.Context, userID string, req *project.SubmissionRequest) (string, error) {
	res, err := c.send(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + fmt.Sprintf(pathUploadProject, url.PathEscape(userID)),
		Headers: map[string]string{"Content-Type": req.ContentType},
		Body:    req.Body,
	})
	if err != nil {
		return "", err
	}
	var out uploadResponse
	if err = decode(res, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("upload response carries no project id")
	}
	return out.ID, nil
}

func (c *Client) PendingProjects(ctx context.Context) ([]project.ReviewableProject, error) {
	res, err := c.send(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + pathPendingProjects,
	})
	if err != nil {
		return nil, err
	}
	var projects []project.ReviewableProject
	if err = decode(res, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

type reviewRequest struct {
	Status  project.Status `json:"status"`
	Comment string         `json:"comment"`
}

func (c *Client) ReviewProject(ctx context.Context, d review.Decision) error {
	body, err := sonic.Marshal(reviewRequest{Status: d.Outcome, Comment: d.Comment})
	if err != nil {
		return errors.Wrap(err, "encoding review")
	}
	_, err = c.send(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + fmt.Sprintf(pathReviewProject, url.PathEscape(d.ProjectID)),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	return err
}

// send performs req, turning non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers["Accept"] = "application/json"
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode, Message: errorMessage(res.Body)}
		c.logger.Debug("showcase api error", apiErr, map[string]interface{}{"method": req.Method, "url": req.BaseURL})
		return nil, apiErr
	}
	return res, nil
}

func decode(res *rest.Response, v interface{}) error {
	if err := sonic.UnmarshalString(res.Body, v); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// errorMessage extracts the message of a JSON error body like {"error": "..."}.
func errorMessage(body string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := sonic.UnmarshalString(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(body)
}
