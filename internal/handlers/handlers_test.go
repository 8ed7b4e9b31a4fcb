package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/oauth2"

	"github.com/SAP-F-2025/quiz-portal/internal/config"
	"github.com/SAP-F-2025/quiz-portal/internal/metrics"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// asUser stands in for the auth middleware.
func asUser(id string, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		c.Set("user_role", role)
		c.Set("user", &models.User{ID: id, Role: role})
		c.Next()
	}
}

func perform(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type document struct {
	Data struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.ValidationErrors{{Field: "name", Message: "required"}}, http.StatusBadRequest},
		{"single validation", services.NewValidationError("answers", "unknown option", 9), http.StatusBadRequest},
		{"business rule", services.NewBusinessRuleError("marks_total", "marks do not add up", nil), http.StatusUnprocessableEntity},
		{"permission", services.NewPermissionError("u1", 3, "attempt", "view", "not the taker"), http.StatusForbidden},
		{"not found", services.ErrAssessmentNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", services.ErrAttemptNotFound), http.StatusNotFound},
		{"limit", services.ErrAttemptLimitExceeded, http.StatusConflict},
		{"expired", services.ErrAttemptTimeExpired, http.StatusGone},
		{"not open", services.ErrAssessmentNotOpen, http.StatusForbidden},
		{"unmarked", services.ErrUnmarkedAnswers, http.StatusConflict},
		{"hidden result", services.ErrResultNotAvailable, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	h := NewBaseHandler(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Message == "" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestParseListParams(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/?page=3&perPage=500&searchType=starts_with&searchColumn=name&searchKeyword=%20mid%20&filters[status]=submitted&filters[empty]=&include=questions,%20groups", nil)

	params := parseListParams(c)

	if params.Page != 3 || params.PerPage != models.MaxPerPage {
		t.Errorf("page/perPage = %d/%d", params.Page, params.PerPage)
	}
	if params.SearchType != models.SearchStartsWith || params.SearchColumn != "name" || params.SearchKeyword != "mid" {
		t.Errorf("search = %q %q %q", params.SearchType, params.SearchColumn, params.SearchKeyword)
	}
	if params.Filters["status"] != "submitted" {
		t.Errorf("filters = %v", params.Filters)
	}
	if _, ok := params.Filters["empty"]; ok {
		t.Error("blank filter kept")
	}
	if !params.Includes("questions") || !params.Includes("groups") {
		t.Errorf("include = %v", params.Include)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleStudent, http.StatusForbidden},
		{models.RoleTeacher, http.StatusNoContent},
		{models.RoleAdmin, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			router := gin.New()
			router.GET("/", asUser("u1", tt.role), RequireRole(models.RoleTeacher), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
			if w := perform(router, http.MethodGet, "/", nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

type fakeVerifier struct {
	claims *casdoorsdk.Claims
}

func (f fakeVerifier) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	if token != "good" {
		return nil, errors.New("signature is invalid")
	}
	return f.claims, nil
}

func TestCasdoorAuthMiddleware(t *testing.T) {
	claims := &casdoorsdk.Claims{User: casdoorsdk.User{Id: "t-1", Type: "teacher", Email: "t@example.com"}}
	auth := NewCasdoorAuthMiddleware(fakeVerifier{claims: claims}, nil, testLogger())

	router := gin.New()
	router.GET("/", auth.AuthMiddleware(), func(c *gin.Context) {
		role, _ := c.Get("user_role")
		c.JSON(http.StatusOK, gin.H{"id": c.GetString("user_id"), "role": role})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"bad signature", "Bearer forged", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != `{"id":"t-1","role":"teacher"}` {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	m := metrics.New()
	rl := NewRateLimiter(0.001, 2, m)
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, perform(router, http.MethodGet, "/", nil).Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited counter = %v, want 1", got)
	}
}

type fakeResultService struct {
	mark    func(attemptID, answerID uint, req *models.MarkAnswerRequest) (*models.QuestionResult, error)
	publish func(attemptID uint) (*models.AssessmentAttempt, error)
	caller  services.Caller
}

func (f *fakeResultService) Get(ctx context.Context, attemptID uint, caller services.Caller) (*models.AttemptResult, error) {
	f.caller = caller
	return nil, services.ErrResultNotAvailable
}

func (f *fakeResultService) MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest, caller services.Caller) (*models.QuestionResult, error) {
	f.caller = caller
	return f.mark(attemptID, answerID, req)
}

func (f *fakeResultService) Publish(ctx context.Context, attemptID uint, caller services.Caller) (*models.AssessmentAttempt, error) {
	f.caller = caller
	return f.publish(attemptID)
}

func TestAttemptHandler_Results(t *testing.T) {
	results := &fakeResultService{
		mark: func(attemptID, answerID uint, req *models.MarkAnswerRequest) (*models.QuestionResult, error) {
			if answerID != 42 {
				return nil, services.ErrAnswerNotFound
			}
			return &models.QuestionResult{AnswerID: answerID, UserMarks: req.UserMarks, Comment: req.Comment}, nil
		},
		publish: func(attemptID uint) (*models.AssessmentAttempt, error) {
			return nil, services.ErrUnmarkedAnswers
		},
	}
	h := NewAttemptHandler(nil, results, testLogger())

	router := gin.New()
	router.Use(asUser("t-1", models.RoleTeacher))
	router.GET("/attempts/:id/result", h.GetResult)
	router.PATCH("/attempts/:id/answers/:answer_id", h.MarkAnswer)
	router.POST("/attempts/:id/publish", h.PublishResult)

	marks := 2.5
	w := perform(router, http.MethodPatch, "/attempts/7/answers/42", models.MarkAnswerRequest{UserMarks: &marks})
	if w.Code != http.StatusOK {
		t.Fatalf("mark status = %d body %s", w.Code, w.Body.String())
	}
	var doc document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Data.ID != "42" || doc.Data.Type != "answers" {
		t.Errorf("resource = %s/%s", doc.Data.Type, doc.Data.ID)
	}
	if results.caller.UserID != "t-1" || results.caller.Role != models.RoleTeacher {
		t.Errorf("caller = %+v", results.caller)
	}

	if w := perform(router, http.MethodPatch, "/attempts/7/answers/1", models.MarkAnswerRequest{UserMarks: &marks}); w.Code != http.StatusNotFound {
		t.Errorf("unknown answer status = %d", w.Code)
	}
	if w := perform(router, http.MethodPatch, "/attempts/abc/answers/42", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
	if w := perform(router, http.MethodPost, "/attempts/7/publish", nil); w.Code != http.StatusConflict {
		t.Errorf("publish status = %d", w.Code)
	}
	if w := perform(router, http.MethodGet, "/attempts/7/result", nil); w.Code != http.StatusForbidden {
		t.Errorf("result status = %d", w.Code)
	}
}

type fakeOAuth struct{}

func (fakeOAuth) GetOAuthToken(code, state string) (*oauth2.Token, error) {
	if code != "abc" {
		return nil, errors.New("invalid_grant")
	}
	return &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (fakeOAuth) RefreshOAuthToken(refreshToken string) (*oauth2.Token, error) {
	return nil, errors.New("expired")
}

func (fakeOAuth) GetSigninUrl(redirectURI string) string {
	return "https://sso.example.com/login/oauth/authorize?redirect_uri=" + redirectURI
}

func (fakeOAuth) GetSignupUrl(enablePassword bool, redirectURI string) string {
	return "https://sso.example.com/signup/quiz"
}

func TestAuthHandler(t *testing.T) {
	cfg := config.CasdoorConfig{Endpoint: "https://sso.example.com/", Application: "quiz", RedirectURL: "http://localhost/callback"}
	h := NewAuthHandler(fakeOAuth{}, cfg, testLogger())

	router := gin.New()
	router.POST("/auth/token", h.ExchangeToken)
	router.POST("/auth/refresh-token", h.RefreshToken)
	router.GET("/auth/urls", h.URLs)

	w := perform(router, http.MethodPost, "/auth/token", TokenRequest{Code: "abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d", w.Code)
	}
	var token TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if token.AccessToken != "access" || token.RefreshToken != "refresh" || token.ExpiresAt == nil {
		t.Errorf("token = %+v", token)
	}

	if w := perform(router, http.MethodPost, "/auth/token", TokenRequest{Code: "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad code status = %d", w.Code)
	}
	if w := perform(router, http.MethodPost, "/auth/token", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing code status = %d", w.Code)
	}
	if w := perform(router, http.MethodPost, "/auth/refresh-token", RefreshTokenRequest{RefreshToken: "old"}); w.Code != http.StatusUnauthorized {
		t.Errorf("refresh status = %d", w.Code)
	}

	w = perform(router, http.MethodGet, "/auth/urls", nil)
	var urls AuthURLs
	if err := json.Unmarshal(w.Body.Bytes(), &urls); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if urls.ForgotPassword != "https://sso.example.com/forget/quiz" {
		t.Errorf("forgot password = %q", urls.ForgotPassword)
	}
	if urls.SignIn != "https://sso.example.com/login/oauth/authorize?redirect_uri=http://localhost/callback" {
		t.Errorf("sign in = %q", urls.SignIn)
	}
}

type fakeAttemptService struct {
	services.AttemptService
	saved  map[uint]json.RawMessage
	caller services.Caller
}

func (f *fakeAttemptService) SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage, caller services.Caller) error {
	f.caller = caller
	if attemptID != 7 {
		return services.ErrAttemptNotFound
	}
	if questionID == 3 {
		return services.ErrAttemptTimeExpired
	}
	f.saved[questionID] = answer
	return nil
}

func TestAttemptHandler_SaveAnswer(t *testing.T) {
	attempts := &fakeAttemptService{saved: map[uint]json.RawMessage{}}
	h := NewAttemptHandler(attempts, nil, testLogger())

	router := gin.New()
	router.Use(asUser("s-1", models.RoleStudent))
	router.PUT("/attempts/:id/answers/:question_id", h.SaveAnswer)

	w := perform(router, http.MethodPut, "/attempts/7/answers/2", models.SaveAnswerRequest{Answer: json.RawMessage(`"11"`)})
	if w.Code != http.StatusNoContent {
		t.Fatalf("save status = %d body %s", w.Code, w.Body.String())
	}
	if got := string(attempts.saved[2]); got != `"11"` {
		t.Errorf("saved answer = %s", got)
	}
	if attempts.caller.UserID != "s-1" {
		t.Errorf("caller = %+v", attempts.caller)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/attempts/8/answers/2", http.StatusNotFound},
		{"/attempts/7/answers/3", http.StatusGone},
		{"/attempts/7/answers/x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := perform(router, http.MethodPut, tt.path, models.SaveAnswerRequest{}); w.Code != tt.want {
			t.Errorf("PUT %s status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}
