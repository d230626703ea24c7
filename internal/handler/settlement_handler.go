package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tally/internal/middleware"
	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/settlement"
)

// SettlementServiceInterface は精算ハンドラーが必要とするサービスインターフェース。
type SettlementServiceInterface interface {
	// Propose は申告された精算を照合し、一致した場合のみ確定する。
	Propose(ctx context.Context, callerID string, input settlement.ProposeInput) (*model.Settlement, error)
	// Get は呼び出しユーザーが所有する精算を取得する。
	Get(ctx context.Context, ownerID, id string) (*model.Settlement, error)
	// List は呼び出しユーザーが所有する精算の一覧と総数を返す。
	List(ctx context.Context, ownerID string) ([]*model.Settlement, int, error)
	// Delete は呼び出しユーザーが所有する精算をソフトデリートする。
	Delete(ctx context.Context, ownerID, id string) error
}

// SettlementHandler は精算のHTTPハンドラー。
type SettlementHandler struct {
	service SettlementServiceInterface
}

// NewSettlementHandler はSettlementHandlerを生成する。
func NewSettlementHandler(service SettlementServiceInterface) *SettlementHandler {
	return &SettlementHandler{
		service: service,
	}
}

// createSettlementRequest は精算作成リクエストのボディ。
// 金額は通貨の最小単位の整数で受け取る。
// settled_atは実際に送金が行われた日時（RFC 3339）。省略時はサーバー時刻を採用する。
type createSettlementRequest struct {
	SendingPartyID   string    `json:"sending_party_id"`
	ReceivingPartyID string    `json:"receiving_party_id"`
	AmountPaid       int64     `json:"amount_paid"`
	Currency         string    `json:"currency"`
	DisbursementIDs  []string  `json:"disbursement_ids"`
	SettledAt        time.Time `json:"settled_at"`
}

// settlementResponse は精算情報のAPIレスポンス。
type settlementResponse struct {
	ID               string    `json:"id"`
	SendingPartyID   string    `json:"sending_party_id"`
	ReceivingPartyID string    `json:"receiving_party_id"`
	AmountPaid       int64     `json:"amount_paid"`
	Currency         string    `json:"currency"`
	SettledAt        time.Time `json:"settled_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// settlementListResponse は精算一覧のAPIレスポンス。
type settlementListResponse struct {
	Settlements []settlementResponse `json:"settlements"`
	Total       int                  `json:"total"`
}

// toSettlementResponse は精算モデルをAPIレスポンスに変換する。
func toSettlementResponse(s *model.Settlement) settlementResponse {
	return settlementResponse{
		ID:               s.ID,
		SendingPartyID:   s.SendingPartyID,
		ReceivingPartyID: s.ReceivingPartyID,
		AmountPaid:       s.AmountPaid.Amount,
		Currency:         string(s.AmountPaid.Currency),
		SettledAt:        s.SettledAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// CreateSettlement は精算の作成を処理する。
// POST /api/settlements
func (h *SettlementHandler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMalformedBodyResponse(w)
		return
	}

	s, err := h.service.Propose(r.Context(), userID, settlement.ProposeInput{
		SendingPartyID:   req.SendingPartyID,
		ReceivingPartyID: req.ReceivingPartyID,
		AmountPaid: model.Money{
			Amount:   req.AmountPaid,
			Currency: model.Currency(req.Currency),
		},
		DisbursementIDs: req.DisbursementIDs,
		SettledAt:       req.SettledAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSettlementResponse(s))
}

// ListSettlements は精算一覧を取得する。
// GET /api/settlements
func (h *SettlementHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	settlements, total, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := settlementListResponse{
		Settlements: make([]settlementResponse, len(settlements)),
		Total:       total,
	}
	for i, s := range settlements {
		resp.Settlements[i] = toSettlementResponse(s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetSettlement は精算の詳細を取得する。
// GET /api/settlements/:id
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	settlementID := chi.URLParam(r, "id")

	s, err := h.service.Get(r.Context(), userID, settlementID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSettlementResponse(s))
}

// DeleteSettlement は精算をソフトデリートする。
// DELETE /api/settlements/:id
func (h *SettlementHandler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	settlementID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, settlementID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
