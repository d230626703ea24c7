// Package handler はHTTP APIのハンドラー群を提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tally/internal/disbursement"
	"github.com/hitoshi/tally/internal/middleware"
	"github.com/hitoshi/tally/internal/model"
)

// DisbursementServiceInterface は立替ハンドラーが必要とするサービスインターフェース。
type DisbursementServiceInterface interface {
	// Create は立替を作成する。
	Create(ctx context.Context, ownerID string, input disbursement.CreateInput) (*model.Disbursement, error)
	// Get は呼び出しユーザーが所有する立替を取得する。
	Get(ctx context.Context, ownerID, id string) (*model.Disbursement, error)
	// List は呼び出しユーザーが所有する立替の1ページと総数を返す。
	List(ctx context.Context, ownerID string, limit, offset int) (*disbursement.Page, error)
	// Delete は呼び出しユーザーが所有する立替をソフトデリートする。
	Delete(ctx context.Context, ownerID, id string) error
}

// DisbursementHandler は立替管理のHTTPハンドラー。
type DisbursementHandler struct {
	service DisbursementServiceInterface
}

// NewDisbursementHandler はDisbursementHandlerを生成する。
func NewDisbursementHandler(service DisbursementServiceInterface) *DisbursementHandler {
	return &DisbursementHandler{
		service: service,
	}
}

// createDisbursementRequest は立替作成リクエストのボディ。
// 金額は通貨の最小単位の整数で受け取る。
type createDisbursementRequest struct {
	PayingPartyID     string `json:"paying_party_id"`
	OnBehalfOfPartyID string `json:"on_behalf_of_party_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Comment           string `json:"comment"`
}

// disbursementResponse は立替情報のAPIレスポンス。
type disbursementResponse struct {
	ID                string    `json:"id"`
	PayingPartyID     string    `json:"paying_party_id"`
	OnBehalfOfPartyID string    `json:"on_behalf_of_party_id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Comment           string    `json:"comment,omitempty"`
	SettlementID      *string   `json:"settlement_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// disbursementListResponse は立替一覧のAPIレスポンス。
type disbursementListResponse struct {
	Disbursements []disbursementResponse `json:"disbursements"`
	Total         int                    `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// toDisbursementResponse は立替モデルをAPIレスポンスに変換する。
func toDisbursementResponse(d *model.Disbursement) disbursementResponse {
	return disbursementResponse{
		ID:                d.ID,
		PayingPartyID:     d.PayingPartyID,
		OnBehalfOfPartyID: d.OnBehalfOfPartyID,
		Amount:            d.Amount.Amount,
		Currency:          string(d.Amount.Currency),
		Comment:           d.Comment,
		SettlementID:      d.SettlementID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// CreateDisbursement は立替の作成を処理する。
// POST /api/disbursements
func (h *DisbursementHandler) CreateDisbursement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createDisbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMalformedBodyResponse(w)
		return
	}

	d, err := h.service.Create(r.Context(), userID, disbursement.CreateInput{
		PayingPartyID:     req.PayingPartyID,
		OnBehalfOfPartyID: req.OnBehalfOfPartyID,
		Amount: model.Money{
			Amount:   req.Amount,
			Currency: model.Currency(req.Currency),
		},
		Comment: req.Comment,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toDisbursementResponse(d))
}

// ListDisbursements は立替一覧を取得する。
// GET /api/disbursements?limit=&offset=
func (h *DisbursementHandler) ListDisbursements(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limitとoffsetには整数を指定してください"))
		return
	}

	page, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := disbursementListResponse{
		Disbursements: make([]disbursementResponse, len(page.Disbursements)),
		Total:         page.Total,
		Limit:         page.Limit,
		Offset:        page.Offset,
	}
	for i, d := range page.Disbursements {
		resp.Disbursements[i] = toDisbursementResponse(d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetDisbursement は立替の詳細を取得する。
// GET /api/disbursements/:id
func (h *DisbursementHandler) GetDisbursement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	disbursementID := chi.URLParam(r, "id")

	d, err := h.service.Get(r.Context(), userID, disbursementID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDisbursementResponse(d))
}

// DeleteDisbursement は立替をソフトデリートする。
// DELETE /api/disbursements/:id
func (h *DisbursementHandler) DeleteDisbursement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	disbursementID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, disbursementID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePagination はlimit/offsetクエリパラメータを解析する。
// 未指定の場合は0を返し、丸めはサービス層に委ねる。
func parsePagination(r *http.Request) (limit, offset int, err error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, err
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, err
		}
	}
	return limit, offset, nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は認証欠落時の401レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "認証トークンを付与してください。",
	})
}

// writeMalformedBodyResponse はボディ解析失敗時の400レスポンスを書き込む。
func writeMalformedBodyResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredential, model.ErrCodeInactiveUser:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeDisbursementNotFound, model.ErrCodeSettlementNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDisbursementSettled:
		return http.StatusConflict
	case model.ErrCodeDisbursementMismatch, model.ErrCodeAmountMismatch, model.ErrCodeCurrencyMismatch:
		return http.StatusUnprocessableEntity
	case model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
