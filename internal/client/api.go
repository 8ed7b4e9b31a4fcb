package client

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// ===== AUTH =====

type AuthURLs struct {
	SignIn         string `json:"signIn"`
	SignUp         string `json:"signUp"`
	ForgotPassword string `json:"forgotPassword"`
}

// ExchangeCode trades the code from the Casdoor redirect for tokens and stores them.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (*Tokens, error) {
	return c.exchange(ctx, "/auth/token", map[string]string{"code": code, "state": state})
}

func (c *Client) Refresh(ctx context.Context) (*Tokens, error) {
	tokens, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if tokens == nil || tokens.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	return c.exchange(ctx, refreshPath, map[string]string{"refreshToken": tokens.RefreshToken})
}

func (c *Client) AuthURLs(ctx context.Context, redirect string) (*AuthURLs, error) {
	q := url.Values{}
	if redirect != "" {
		q.Set("redirect", redirect)
	}
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/urls", query: q, anonymous: true})
	if err != nil {
		return nil, err
	}
	var urls AuthURLs
	if err := json.Unmarshal(resp.Body(), &urls); err != nil {
		return nil, fmt.Errorf("decode auth urls: %w", err)
	}
	return &urls, nil
}

func (c *Client) Logout() error {
	return c.tokens.Clear()
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := single[models.User](ctx, c, request{method: http.MethodGet, path: "/users/me"})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

// ===== ASSESSMENTS =====

func (c *Client) ListAssessments(ctx context.Context, params ListParams) (*ListResponse[models.Assessment], error) {
	return getList[models.Assessment](ctx, c, "/assessments", params)
}

func (c *Client) GetAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	resp, err := single[models.Assessment](ctx, c, request{method: http.MethodGet, path: fmt.Sprintf("/assessments/%d", id)})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) CreateAssessment(ctx context.Context, req *models.AssessmentRequest) (*models.Assessment, error) {
	resp, err := single[models.Assessment](ctx, c, request{method: http.MethodPost, path: "/assessments", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) UpdateAssessment(ctx context.Context, id uint, req *models.AssessmentRequest) (*models.Assessment, error) {
	resp, err := single[models.Assessment](ctx, c, request{method: http.MethodPut, path: fmt.Sprintf("/assessments/%d", id), body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) DeleteAssessment(ctx context.Context, id uint) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("/assessments/%d", id)})
	return err
}

// ===== QUESTION BANK AND CATALOG =====

func (c *Client) ListQuestions(ctx context.Context, params ListParams) (*ListResponse[models.Question], error) {
	return getList[models.Question](ctx, c, "/questions", params)
}

func (c *Client) CreateQuestion(ctx context.Context, req *models.QuestionRequest) (*models.Question, error) {
	resp, err := single[models.Question](ctx, c, request{method: http.MethodPost, path: "/questions", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) ListSubjects(ctx context.Context, params ListParams) (*ListResponse[models.Subject], error) {
	return getList[models.Subject](ctx, c, "/subjects", params)
}

func (c *Client) CreateSubject(ctx context.Context, req *models.SubjectRequest) (*models.Subject, error) {
	resp, err := single[models.Subject](ctx, c, request{method: http.MethodPost, path: "/subjects", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) ListCategories(ctx context.Context, params ListParams) (*ListResponse[models.Category], error) {
	return getList[models.Category](ctx, c, "/categories", params)
}

func (c *Client) CreateCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, error) {
	resp, err := single[models.Category](ctx, c, request{method: http.MethodPost, path: "/categories", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) ListPassages(ctx context.Context, params ListParams) (*ListResponse[models.Passage], error) {
	return getList[models.Passage](ctx, c, "/passages", params)
}

// ===== GROUPS AND USERS =====

func (c *Client) ListGroups(ctx context.Context, params ListParams) (*ListResponse[models.Group], error) {
	return getList[models.Group](ctx, c, "/groups", params)
}

func (c *Client) CreateGroup(ctx context.Context, req *models.GroupRequest) (*models.Group, error) {
	resp, err := single[models.Group](ctx, c, request{method: http.MethodPost, path: "/groups", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) GetGroup(ctx context.Context, id uint) (*models.Group, error) {
	resp, err := single[models.Group](ctx, c, request{method: http.MethodGet, path: fmt.Sprintf("/groups/%d", id)})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

// UpdateGroup saves name and description; members are kept when req.MemberIDs is nil.
func (c *Client) UpdateGroup(ctx context.Context, id uint, req *models.GroupRequest) (*models.Group, error) {
	resp, err := single[models.Group](ctx, c, request{method: http.MethodPut, path: fmt.Sprintf("/groups/%d", id), body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) ListUsers(ctx context.Context, params ListParams) (*ListResponse[models.User], error) {
	return getList[models.User](ctx, c, "/users", params)
}

// ===== TAKING =====

// StartAttempt creates an attempt or resumes the open one.
func (c *Client) StartAttempt(ctx context.Context, assessmentID uint) (*models.AttemptSession, error) {
	resp, err := single[models.AttemptSession](ctx, c, request{method: http.MethodPost, path: fmt.Sprintf("/assessments/%d/attempts", assessmentID)})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

// SaveAnswer stores one answer of an open attempt ahead of submission.
func (c *Client) SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage) error {
	_, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/attempts/%d/answers/%d", attemptID, questionID),
		body:   models.SaveAnswerRequest{Answer: answer},
	})
	return err
}

func (c *Client) SubmitAttempt(ctx context.Context, req *models.SubmitAttemptRequest) (*models.AttemptResult, error) {
	resp, err := single[models.AttemptResult](ctx, c, request{method: http.MethodPost, path: "/attempts/submit", body: req})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) ListAttempts(ctx context.Context, params ListParams) (*ListResponse[models.AssessmentAttempt], error) {
	return getList[models.AssessmentAttempt](ctx, c, "/attempts", params)
}

// ===== REVIEW =====

func (c *Client) GetResult(ctx context.Context, attemptID uint) (*models.AttemptResult, error) {
	resp, err := single[models.AttemptResult](ctx, c, request{method: http.MethodGet, path: fmt.Sprintf("/attempts/%d/result", attemptID)})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

// MarkAnswer patches the score and/or comment of one answer; nil fields are left unchanged.
func (c *Client) MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest) (*models.QuestionResult, error) {
	resp, err := single[models.QuestionResult](ctx, c, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/attempts/%d/answers/%d", attemptID, answerID),
		body:   req,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

func (c *Client) PublishResult(ctx context.Context, attemptID uint) (*models.AssessmentAttempt, error) {
	resp, err := single[models.AssessmentAttempt](ctx, c, request{method: http.MethodPost, path: fmt.Sprintf("/attempts/%d/publish", attemptID)})
	if err != nil {
		return nil, err
	}
	return &resp.Attrs, nil
}

// ExportResults downloads the results workbook and returns it with the server's file name.
func (c *Client) ExportResults(ctx context.Context, assessmentID uint) ([]byte, string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/assessments/%d/results/export", assessmentID)})
	if err != nil {
		return nil, "", err
	}

	name := fmt.Sprintf("assessment-%d-results.xlsx", assessmentID)
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return resp.Body(), name, nil
}
