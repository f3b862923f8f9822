package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tapsavehq/tapsave/internal/clock"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	redemptionsvc "github.com/tapsavehq/tapsave/internal/redemption/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRedemptionService struct {
	issued    *redemptiondomain.RedemptionToken
	issueErr  error
	outcome   redemptiondomain.Outcome
	lastIssue redemptiondomain.IssueRequest
}

func (f *fakeRedemptionService) Issue(ctx context.Context, req redemptiondomain.IssueRequest) (*redemptiondomain.RedemptionToken, error) {
	f.lastIssue = req
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issued, nil
}

func (f *fakeRedemptionService) Validate(ctx context.Context, tokenID, merchantID string) (redemptiondomain.Outcome, error) {
	return f.outcome, nil
}

func (f *fakeRedemptionService) History(ctx context.Context, req redemptiondomain.HistoryRequest) (redemptiondomain.HistoryResponse, error) {
	return redemptiondomain.HistoryResponse{}, nil
}

type fakeQuotaService struct {
	remaining int
}

func (f *fakeQuotaService) CheckAndReserve(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	return f.remaining, nil
}

func (f *fakeQuotaService) PeekRemaining(ctx context.Context, userID string) (int, error) {
	return f.remaining, nil
}

func (f *fakeQuotaService) Grant(ctx context.Context, tx *gorm.DB, userID string, amount int) (int, error) {
	f.remaining += amount
	return f.remaining, nil
}

func newTestServer(redemptionSvc redemptiondomain.Service, quotaSvc quotadomain.Service) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:           zap.NewNop(),
		clock:         clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		redemptionCfg: redemptionsvc.Config{},
		redemptionSvc: redemptionSvc,
		quotaSvc:      quotaSvc,
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.RegisterRoutes()
	return srv, router
}

func TestStartRedeemSession(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc := &fakeRedemptionService{
		issued: &redemptiondomain.RedemptionToken{
			TokenID:   "tok-abc",
			OfferID:   "offer-1",
			IssuedAt:  now,
			ExpiresAt: now.Add(90 * time.Second),
		},
	}
	_, router := newTestServer(svc, nil)

	body := bytes.NewBufferString(`{"offer_id":"offer-1","merchant_id":"merchant-1","device_tag":"browser","ttl_seconds":90}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/redeem/sessions", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var reply startRedeemSessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.TokenID != "tok-abc" {
		t.Fatalf("unexpected token id %q", reply.TokenID)
	}
	if svc.lastIssue.UserID != "user-1" || svc.lastIssue.TTL != 90*time.Second {
		t.Fatalf("unexpected issue request %+v", svc.lastIssue)
	}
}

func TestStartRedeemSessionRequiresIdentity(t *testing.T) {
	_, router := newTestServer(&fakeRedemptionService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/redeem/sessions", bytes.NewBufferString(`{"offer_id":"o","merchant_id":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestStartRedeemSessionQuotaExhausted(t *testing.T) {
	svc := &fakeRedemptionService{issueErr: quotadomain.ErrQuotaExhausted}
	_, router := newTestServer(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/redeem/sessions", bytes.NewBufferString(`{"offer_id":"o","merchant_id":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}

	var reply ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Error.Type != "quota_exhausted" || reply.Error.Message != "free_limit_reached" {
		t.Fatalf("unexpected error body %+v", reply)
	}
}

func TestScanTokenRejectionIsStill200(t *testing.T) {
	svc := &fakeRedemptionService{
		outcome: redemptiondomain.Outcome{
			Accepted: false,
			Reason:   redemptiondomain.ReasonAlreadyUsed,
		},
	}
	_, router := newTestServer(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/scan", bytes.NewBufferString(`{"token_id":"tok-abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-ID", "merchant-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply scanResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Outcome != "rejected" || reply.Reason != "already_used" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestScanTokenAccepted(t *testing.T) {
	svc := &fakeRedemptionService{
		outcome: redemptiondomain.Outcome{
			Accepted: true,
			Token: &redemptiondomain.RedemptionToken{
				OfferID: "offer-1",
				UserID:  "user-1",
			},
		},
	}
	_, router := newTestServer(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/scan", bytes.NewBufferString(`{"token_id":"tok-abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-ID", "merchant-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply scanResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Outcome != "accepted" || reply.Reason != "" || reply.OfferID != "offer-1" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestScanTokenRequiresMerchant(t *testing.T) {
	_, router := newTestServer(&fakeRedemptionService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/scan", bytes.NewBufferString(`{"token_id":"tok-abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGetFreeRemaining(t *testing.T) {
	_, router := newTestServer(&fakeRedemptionService{}, &fakeQuotaService{remaining: 2})

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req.Header.Set("X-User-ID", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply quotaResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", reply.Remaining)
	}
}
