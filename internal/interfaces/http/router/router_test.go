package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-journal-api/internal/application/aigateway"
	"growth-journal-api/internal/application/quota"
	"growth-journal-api/internal/config"
	"growth-journal-api/internal/infrastructure/persistence/memory"
	"growth-journal-api/internal/infrastructure/signing"
	"growth-journal-api/internal/infrastructure/workflow"
	"growth-journal-api/internal/interfaces/http/handler"
	"growth-journal-api/internal/interfaces/http/middleware"
	"growth-journal-api/pkg/utils"
)

const (
	testSecret = "test-secret"
	testIssuer = "growth-journal"
)

type stubInvoker struct {
	calls atomic.Int32
	data  string
	err   error
}

func (s *stubInvoker) Invoke(_ context.Context, _ workflow.Request) (*workflow.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &workflow.Result{Code: 200, Data: json.RawMessage(s.data), Attempts: 1}, nil
}

type testServer struct {
	engine  *gin.Engine
	invoker *stubInvoker
	repo    *memory.UsageRecordRepository
}

func newTestServer(t *testing.T, limit int64, rateLimit bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT.Secret = testSecret
	cfg.Security.JWT.Issuer = testIssuer
	cfg.Security.RateLimit.Enabled = rateLimit
	cfg.Security.RateLimit.RequestsPerSecond = 2
	cfg.Security.RateLimit.Burst = 2

	repo := memory.NewUsageRecordRepository()
	ledger := quota.NewUsageLedger(repo, limit, time.UTC)
	invoker := &stubInvoker{data: `{"emotion_type":"happy","emotion_level":80,"analysis":"不错"}`}
	gateway := aigateway.New(invoker, ledger, aigateway.Workflows{
		EmotionAnalysis: "wf-emotion",
		ContentSummary:  "wf-summary",
	})

	r := New(cfg, Handlers{
		Health: handler.NewHealthHandler("test"),
		AI:     handler.NewAIHandler(gateway, ledger),
	}, middleware.NewLocalRateLimiter(cfg.Security.RateLimit.Burst))

	return &testServer{engine: r.Engine(), invoker: invoker, repo: repo}
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.NewJWTManager(testSecret, testIssuer).GenerateToken(userID, utils.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t, 20, false)

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := s.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAIRoutes_Auth(t *testing.T) {
	s := newTestServer(t, 20, false)

	t.Run("缺少令牌", func(t *testing.T) {
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", "", `{"content":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh 令牌不可用于接口", func(t *testing.T) {
		token, err := utils.NewJWTManager(testSecret, testIssuer).GenerateToken("u1", utils.TokenTypeRefresh, time.Hour)
		require.NoError(t, err)
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", token, `{"content":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("签名密钥不符", func(t *testing.T) {
		token, err := utils.NewJWTManager("other", testIssuer).GenerateToken("u1", utils.TokenTypeAccess, time.Hour)
		require.NoError(t, err)
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", token, `{"content":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	assert.Equal(t, int32(0), s.invoker.calls.Load())
}

func TestAIRoutes_OutcomeMapping(t *testing.T) {
	t.Run("成功返回 200 并整形", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", accessToken(t, "u1"), `{"content":"今天很开心"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Code int                       `json:"code"`
			Data aigateway.EmotionAnalysis `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Data.EmotionType)
		assert.Equal(t, "happy", *resp.Data.EmotionType)
		assert.Equal(t, int64(80), resp.Data.EmotionLevel)
	})

	t.Run("请求体缺字段返回 400", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", accessToken(t, "u1"), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), s.invoker.calls.Load())
	})

	t.Run("超出配额返回 429", func(t *testing.T) {
		s := newTestServer(t, 1, false)
		token := accessToken(t, "u1")
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/ai/emotion/analyze", token, `{"content":"a"}`).Code)

		w := s.do(http.MethodPost, "/v1/ai/summary", token, `{"content":"b"}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "4007")
		assert.Equal(t, int32(1), s.invoker.calls.Load())
	})

	t.Run("工作流失败返回 502", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		s.invoker.err = &workflow.Error{Kind: workflow.KindTransport, StatusCode: 500}
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", accessToken(t, "u1"), `{"content":"a"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "4008")
	})

	t.Run("工作流业务拒绝返回 4009", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		s.invoker.err = &workflow.Error{Kind: workflow.KindBusiness, Code: 500, Message: "busy"}
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", accessToken(t, "u1"), `{"content":"a"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "4009")
	})

	t.Run("签名失败返回 5006", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		s.invoker.err = &workflow.Error{Kind: workflow.KindSigning, Err: signing.ErrKeyUnavailable}
		w := s.do(http.MethodPost, "/v1/ai/emotion/analyze", accessToken(t, "u1"), `{"content":"a"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "5006")
	})

	t.Run("未配置工作流返回 502", func(t *testing.T) {
		s := newTestServer(t, 20, false)
		w := s.do(http.MethodPost, "/v1/ai/career/action", accessToken(t, "u1"), `{"description":"a"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, int32(0), s.invoker.calls.Load())
	})
}

func TestAIRoutes_Usage(t *testing.T) {
	s := newTestServer(t, 5, false)
	token := accessToken(t, "u1")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/ai/emotion/analyze", token, `{"content":"a"}`).Code)

	s.invoker.err = &workflow.Error{Kind: workflow.KindBusiness, Code: 500}
	require.Equal(t, http.StatusBadGateway, s.do(http.MethodPost, "/v1/ai/emotion/analyze", token, `{"content":"b"}`).Code)

	w := s.do(http.MethodGet, "/v1/ai/usage", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Limit     int64 `json:"limit"`
			Used      int64 `json:"used"`
			Remaining int64 `json:"remaining"`
			Records   []struct {
				APIName      string `json:"api_name"`
				CallCount    int64  `json:"call_count"`
				SuccessCount int64  `json:"success_count"`
				ErrorCount   int64  `json:"error_count"`
			} `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.Data.Limit)
	assert.Equal(t, int64(2), resp.Data.Used)
	assert.Equal(t, int64(3), resp.Data.Remaining)
	require.Len(t, resp.Data.Records, 1)
	assert.Equal(t, aigateway.APIEmotionAnalysis, resp.Data.Records[0].APIName)
	assert.Equal(t, int64(1), resp.Data.Records[0].SuccessCount)
	assert.Equal(t, int64(1), resp.Data.Records[0].ErrorCount)
}

func TestAIRoutes_RateLimit(t *testing.T) {
	s := newTestServer(t, 0, true)
	token := accessToken(t, "u1")

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(http.MethodGet, "/v1/ai/usage", token, "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他用户不受影响
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/ai/usage", accessToken(t, "u2"), "").Code)
}
