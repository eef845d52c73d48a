package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lm-legal/payments/internal/api/dto"
	v1 "github.com/lm-legal/payments/internal/api/v1"
	"github.com/lm-legal/payments/internal/auth"
	"github.com/lm-legal/payments/internal/document"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/pyroscope"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/service"
	"github.com/lm-legal/payments/internal/testutil"
	"github.com/lm-legal/payments/internal/types"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router   *gin.Engine
	tokens   auth.Provider
	invoices service.InvoiceService
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	log := s.GetLogger()
	stores := s.GetStores()
	params := service.NewServiceParams(
		log, cfg, s.GetDB(), sentry.NewSentryService(cfg, log),
		stores.PaymentRepo, stores.InvoiceRepo, stores.PlanRepo, stores.UserRepo,
		stores.CaseRepo, stores.OutboxRepo, stores.WebhookEventRepo,
		s.GetGateways(), s.GetArtifacts(), s.GetEmail(),
	)

	documents, err := document.NewGenerator()
	s.Require().NoError(err)

	ledger := service.NewLedgerService(params)
	payments := service.NewPaymentService(params)
	s.invoices = service.NewInvoiceService(params, documents)

	s.router = NewRouter(Handlers{
		Health:  v1.NewHealthHandler(s.GetDB(), log),
		Payment: v1.NewPaymentHandler(service.NewCheckoutService(params, ledger), payments, s.invoices, log),
		Webhook: v1.NewWebhookHandler(service.NewWebhookService(params, ledger), log),
		Plan:    v1.NewPlanHandler(service.NewPlanService(params)),
		Admin:   v1.NewAdminHandler(payments),
	}, cfg, log, pyroscope.NewPyroscopeService(cfg, log))
	s.tokens = auth.NewProvider(cfg)

	s.SeedUser(testutil.TestUserID, "client@example.com")
	s.SeedCase(42, testutil.TestUserID)
	s.SeedPlan(7, "4.99")
	s.GetStores().PaymentRepo.SetNextID(101)
}

func (s *RouterSuite) token(userID int64, role string) string {
	token, err := s.tokens.GenerateToken(auth.Claims{UserID: userID, Email: "client@example.com", Role: role}, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) do(method, path, token string, body []byte, headers http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) checkout(body string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/v1/payments/checkout", s.token(testutil.TestUserID, types.RoleUser), []byte(body), nil)
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestCheckoutRequiresToken() {
	w := s.do(http.MethodPost, "/v1/payments/checkout", "", []byte(`{"case_id":42,"plan_id":7}`), nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/payments/checkout", "not-a-jwt", []byte(`{"case_id":42,"plan_id":7}`), nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
	s.NotEmpty(resp.Error.Display)
}

func (s *RouterSuite) TestCheckoutCreated() {
	w := s.checkout(`{"case_id":42,"plan_id":7}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.CheckoutResponse
	s.decode(w, &resp)
	s.Equal(int64(101), resp.PaymentID)
	s.NotEmpty(resp.ProviderSessionID)
	s.NotEmpty(resp.RedirectURL)
	s.Equal(types.PaymentStatusPending, resp.Status)
	s.Equal("4.99", resp.Amount.StringFixed(2))
}

func (s *RouterSuite) TestCheckoutErrors() {
	s.SeedCase(43, testutil.TestOtherID)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{"case_id":`, status: http.StatusBadRequest},
		{name: "missing plan", body: `{"case_id":42}`, status: http.StatusBadRequest},
		{name: "unknown method", body: `{"case_id":42,"plan_id":7,"method":"cash"}`, status: http.StatusBadRequest},
		{name: "unknown case", body: `{"case_id":404,"plan_id":7}`, status: http.StatusNotFound},
		{name: "unknown plan", body: `{"case_id":42,"plan_id":404}`, status: http.StatusNotFound},
		{name: "foreign case", body: `{"case_id":43,"plan_id":7}`, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.checkout(tt.body)
			s.Equal(tt.status, w.Code, w.Body.String())
		})
	}
	s.Equal(0, s.GetStores().PaymentRepo.Len())
}

func (s *RouterSuite) TestCheckoutProviderUnavailable() {
	s.GetCardGateway().CreateErr = ierr.NewError("timeout").Mark(ierr.ErrProviderUnavailable)

	w := s.checkout(`{"case_id":42,"plan_id":7}`)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *RouterSuite) TestWebhookFlow() {
	w := s.checkout(`{"case_id":42,"plan_id":7}`)
	s.Require().Equal(http.StatusCreated, w.Code)
	var co dto.CheckoutResponse
	s.decode(w, &co)

	payload, headers := testutil.MockDelivery(gateway.VerifiedEvent{
		EventID:           "evt_1",
		EventType:         "checkout.session.completed",
		Kind:              types.WebhookEventKindCompleted,
		ProviderReference: co.ProviderSessionID,
	})

	w = s.do(http.MethodPost, "/v1/payments/webhook/stripe", "", payload, headers)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.WebhookResponse
	s.decode(w, &resp)
	s.Equal(types.WebhookOutcomeApplied, resp.Outcome)

	// redelivery is acknowledged without a second transition
	w = s.do(http.MethodPost, "/v1/payments/webhook/stripe", "", payload, headers)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &resp)
	s.Equal(types.WebhookOutcomeNoop, resp.Outcome)

	w = s.do(http.MethodGet, "/v1/payments/101/status", s.token(testutil.TestUserID, types.RoleUser), nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status dto.PaymentStatusResponse
	s.decode(w, &status)
	s.Equal(types.PaymentStatusCompleted, status.Status)
	s.True(status.Final)
}

func (s *RouterSuite) TestWebhookBadSignature() {
	w := s.do(http.MethodPost, "/v1/payments/webhook/stripe", "", []byte(`{"id":"evt_1"}`), nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(1, len(s.GetStores().WebhookEventRepo.All()))
}

func (s *RouterSuite) TestWebhookUnknownProvider() {
	w := s.do(http.MethodPost, "/v1/payments/webhook/bank", "", []byte(`{}`), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestInvoiceEndpoints() {
	w := s.checkout(`{"case_id":42,"plan_id":7}`)
	s.Require().Equal(http.StatusCreated, w.Code)
	user := s.token(testutil.TestUserID, types.RoleUser)

	w = s.do(http.MethodGet, "/v1/payments/101/invoice", user, nil, nil)
	s.Equal(http.StatusNotFound, w.Code)

	_, err := s.GetStores().PaymentRepo.Transition(s.GetContext(), 101, types.PaymentStatusCompleted, []types.PaymentStatus{types.PaymentStatusPending}, nil)
	s.Require().NoError(err)
	_, err = s.invoices.IssueForPayment(s.GetContext(), 101)
	s.Require().NoError(err)

	w = s.do(http.MethodGet, "/v1/payments/101/invoice", user, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var inv dto.InvoiceResponse
	s.decode(w, &inv)
	s.True(strings.HasPrefix(inv.InvoiceNumber, "LM-"))
	s.Equal("/v1/payments/101/invoice/download", inv.ArtifactURL)

	w = s.do(http.MethodGet, "/v1/payments/101/invoice/download", user, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/html")
	s.Contains(w.Header().Get("Content-Disposition"), inv.InvoiceNumber)
	s.Contains(w.Body.String(), inv.InvoiceNumber)
}

func (s *RouterSuite) TestPaymentIDValidation() {
	w := s.do(http.MethodGet, "/v1/payments/abc", s.token(testutil.TestUserID, types.RoleUser), nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestListPlans() {
	w := s.do(http.MethodGet, "/v1/plans", s.token(testutil.TestUserID, types.RoleUser), nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.ListPlansResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Items, 1)
	s.Equal(int64(7), resp.Items[0].ID)
}

func (s *RouterSuite) TestAdminRoutesRequireRole() {
	w := s.do(http.MethodGet, "/v1/admin/payments", s.token(testutil.TestUserID, types.RoleUser), nil, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/v1/admin/payments/stats?period=week", s.token(testutil.TestUserID, types.RoleUser), nil, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestAdminListAndStats() {
	s.Require().Equal(http.StatusCreated, s.checkout(`{"case_id":42,"plan_id":7}`).Code)
	admin := s.token(testutil.TestAdminID, types.RoleAdmin)

	w := s.do(http.MethodGet, "/v1/admin/payments?status=pending&limit=10", admin, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list dto.ListPaymentsResponse
	s.decode(w, &list)
	s.Require().Len(list.Items, 1)
	s.Equal(testutil.TestUserID, list.Items[0].UserID)
	s.Equal(10, list.Pagination.Limit)

	w = s.do(http.MethodGet, "/v1/admin/payments?status=paid", admin, nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/v1/admin/payments/stats?period=week", admin, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var stats dto.PaymentStatsResponse
	s.decode(w, &stats)
	s.Equal(types.StatsPeriodWeek, stats.Period)
	s.Equal(int64(0), stats.TotalCount)

	w = s.do(http.MethodGet, "/v1/admin/payments/stats?period=decade", admin, nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}
