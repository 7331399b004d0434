package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the quiz REST API. Every failure it returns is an
// *apperror.Error; nothing else crosses this boundary.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for the API rooted at baseURL (e.g. http://host/api/v1).
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// ListTests fetches the test catalog.
// GET /tests/
func (c *Client) ListTests(ctx context.Context) ([]model.TestMetadata, error) {
	var tests []model.TestMetadata
	if err := c.do(ctx, http.MethodGet, "/tests/", nil, nil, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

// GetQuestions fetches a question batch for the given categories and mode.
// GET /questions/?categories=<csv>&num_questions=<int>&mode=<mode>
func (c *Client) GetQuestions(ctx context.Context, q model.QuestionQuery) ([]model.Question, error) {
	params := url.Values{}
	params.Set("categories", strings.Join(q.Categories, ","))
	params.Set("num_questions", strconv.Itoa(q.NumQuestions))
	if q.Mode != "" {
		params.Set("mode", string(q.Mode))
	}

	var questions []model.Question
	if err := c.do(ctx, http.MethodGet, "/questions/", params, nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// CheckAnswer submits a free-text answer for grading.
// POST /check_answer/
func (c *Client) CheckAnswer(ctx context.Context, req model.CheckAnswerRequest) (*model.CheckAnswerResponse, error) {
	var resp model.CheckAnswerResponse
	if err := c.do(ctx, http.MethodPost, "/check_answer/", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTaskResult polls a grading task once.
// GET /task_result/<task_id>/
func (c *Client) GetTaskResult(ctx context.Context, taskID string) (*model.TaskResult, error) {
	var res model.TaskResult
	path := "/task_result/" + url.PathEscape(taskID) + "/"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
		return nil, err
	}
	if res.Status == "" {
		return nil, apperror.InvalidResponse(fmt.Errorf("task %s: empty status", taskID))
	}
	return &res, nil
}

// ReportIssue files a user report about a question or its AI grading.
// POST /report_issue/
func (c *Client) ReportIssue(ctx context.Context, req model.ReportIssueRequest) error {
	return c.do(ctx, http.MethodPost, "/report_issue/", nil, req, nil)
}

// do performs one request. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperror.New(apperror.KindValidation, apperror.CodeInvalidState).WithDetail("encode", err.Error())
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperror.Network(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Request failed without response")
		return apperror.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperror.Network(fmt.Errorf("read body: %w", err))
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.InvalidResponse(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}
