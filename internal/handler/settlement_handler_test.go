package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/settlement"
)

// --- モック ---

type mockSettlementService struct {
	proposeFn func(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error)
	getFn     func(ctx context.Context, ownerID, id string) (*model.Settlement, error)
	listFn    func(ctx context.Context, ownerID string) ([]*model.Settlement, int, error)
	deleteFn  func(ctx context.Context, ownerID, id string) error
}

func (m *mockSettlementService) Propose(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error) {
	return m.proposeFn(ctx, callerID, input)
}
func (m *mockSettlementService) Get(ctx context.Context, ownerID, id string) (*model.Settlement, error) {
	return m.getFn(ctx, ownerID, id)
}
func (m *mockSettlementService) List(ctx context.Context, ownerID string) ([]*model.Settlement, int, error) {
	return m.listFn(ctx, ownerID)
}
func (m *mockSettlementService) Delete(ctx context.Context, ownerID, id string) error {
	return m.deleteFn(ctx, ownerID, id)
}

// --- POST /api/settlements ---

func TestSettlementHandler_Create_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	wantSettledAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockSettlementService{
		proposeFn: func(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error) {
			if callerID != "user-1" {
				t.Errorf("callerID = %q, want user-1", callerID)
			}
			if len(input.DisbursementIDs) != 2 {
				t.Errorf("disbursement IDs = %v, want 2 items", input.DisbursementIDs)
			}
			if !input.SettledAt.Equal(wantSettledAt) {
				t.Errorf("SettledAt = %v, want %v", input.SettledAt, wantSettledAt)
			}
			return &model.Settlement{
				ID:               "s-1",
				OwnerID:          callerID,
				SendingPartyID:   input.SendingPartyID,
				ReceivingPartyID: input.ReceivingPartyID,
				AmountPaid:       input.AmountPaid,
				SettledAt:        input.SettledAt,
				CreatedAt:        now,
				UpdatedAt:        now,
			}, nil
		},
	}

	h := NewSettlementHandler(svc)

	body := `{"sending_party_id":"user-1","receiving_party_id":"user-2","amount_paid":3000,"currency":"JPY","disbursement_ids":["d-1","d-2"],"settled_at":"2026-08-01T12:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/settlements", bytes.NewBufferString(body))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateSettlement(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != "s-1" {
		t.Errorf("id = %v, want s-1", resp["id"])
	}
	if resp["amount_paid"] != float64(3000) {
		t.Errorf("amount_paid = %v, want 3000", resp["amount_paid"])
	}
}

// 照合拒否のエラーコードがHTTPステータスに正しく対応付けられる。
func TestSettlementHandler_Create_ReconciliationErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			"立替集合の不一致",
			model.NewDisbursementMismatchError(),
			http.StatusUnprocessableEntity,
			model.ErrCodeDisbursementMismatch,
		},
		{
			"金額の不一致",
			model.NewAmountMismatchError(
				model.Money{Amount: 3000, Currency: model.CurrencyJPY},
				model.Money{Amount: 2999, Currency: model.CurrencyJPY},
			),
			http.StatusUnprocessableEntity,
			model.ErrCodeAmountMismatch,
		},
		{
			"通貨の混在",
			model.NewCurrencyMismatchError(),
			http.StatusUnprocessableEntity,
			model.ErrCodeCurrencyMismatch,
		},
		{
			"送金者本人以外の作成",
			model.NewForbiddenError("精算は送金者本人のみが作成できます"),
			http.StatusForbidden,
			model.ErrCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSettlementService{
				proposeFn: func(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error) {
					return nil, tt.serviceErr
				},
			}
			h := NewSettlementHandler(svc)

			body := `{"sending_party_id":"user-1","receiving_party_id":"user-2","amount_paid":3000,"currency":"JPY","disbursement_ids":["d-1"]}`
			req := httptest.NewRequest(http.MethodPost, "/api/settlements", bytes.NewBufferString(body))
			req = withUserID(req, "user-1")
			w := httptest.NewRecorder()

			h.CreateSettlement(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestSettlementHandler_Create_MalformedBody(t *testing.T) {
	svc := &mockSettlementService{
		proposeFn: func(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error) {
			t.Error("Propose must not be called")
			return nil, nil
		},
	}

	h := NewSettlementHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/settlements", bytes.NewBufferString("{not json"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateSettlement(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/settlements ---

func TestSettlementHandler_List_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockSettlementService{
		listFn: func(ctx context.Context, ownerID string) ([]*model.Settlement, int, error) {
			return []*model.Settlement{
				{
					ID:               "s-1",
					SendingPartyID:   "user-1",
					ReceivingPartyID: "user-2",
					AmountPaid:       model.Money{Amount: 3000, Currency: model.CurrencyJPY},
					SettledAt:        now,
				},
			}, 1, nil
		},
	}

	h := NewSettlementHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/settlements", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.ListSettlements(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp settlementListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Settlements) != 1 || resp.Total != 1 {
		t.Errorf("resp = %+v, want 1 item, total 1", resp)
	}
}

// --- GET /api/settlements/{id} ---

func TestSettlementHandler_Get_NotFound(t *testing.T) {
	svc := &mockSettlementService{
		getFn: func(ctx context.Context, ownerID, id string) (*model.Settlement, error) {
			return nil, model.NewSettlementNotFoundError(id)
		},
	}

	h := NewSettlementHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/settlements/s-404", nil)
	req = withUserID(req, "user-1")
	req = withURLParam(req, "id", "s-404")
	w := httptest.NewRecorder()

	h.GetSettlement(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- DELETE /api/settlements/{id} ---

func TestSettlementHandler_Delete_Success(t *testing.T) {
	svc := &mockSettlementService{
		deleteFn: func(ctx context.Context, ownerID, id string) error {
			return nil
		},
	}

	h := NewSettlementHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/settlements/s-1", nil)
	req = withUserID(req, "user-1")
	req = withURLParam(req, "id", "s-1")
	w := httptest.NewRecorder()

	h.DeleteSettlement(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestSettlementHandler_Unauthorized(t *testing.T) {
	h := NewSettlementHandler(&mockSettlementService{})

	req := httptest.NewRequest(http.MethodGet, "/api/settlements", nil)
	w := httptest.NewRecorder()

	h.ListSettlements(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
