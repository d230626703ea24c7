// Package disbursement は立替管理のドメインロジックを提供する。
package disbursement

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/tally/internal/metrics"
	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/repository"
	"github.com/hitoshi/tally/internal/security"
)

// 一覧取得のページサイズ制限。
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// CreateInput は立替作成の入力。
type CreateInput struct {
	PayingPartyID     string
	OnBehalfOfPartyID string
	Amount            model.Money
	Comment           string
}

// Page は立替一覧の1ページと全体の総数を保持する。
type Page struct {
	Disbursements []*model.Disbursement
	Total         int
	Limit         int
	Offset        int
}

// Service は立替管理のサービス層。
// 作成、参照、一覧、ソフトデリートのビジネスロジックを提供する。
// すべての参照・削除は呼び出しユーザーが所有する立替に限定される。
type Service struct {
	disbRepo  repository.DisbursementRepository
	userRepo  repository.UserRepository
	sanitizer security.CommentSanitizerService
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	disbRepo repository.DisbursementRepository,
	userRepo repository.UserRepository,
	sanitizer security.CommentSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		disbRepo:  disbRepo,
		userRepo:  userRepo,
		sanitizer: sanitizer,
		collector: collector,
	}
}

// Create は立替を作成する。
// 当事者の検証、通貨と金額の検証、コメントのサニタイズを行う。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Disbursement, error) {
	if input.PayingPartyID == "" || input.OnBehalfOfPartyID == "" {
		return nil, model.NewValidationError("支払者と受益者の両方を指定してください")
	}
	if input.PayingPartyID == input.OnBehalfOfPartyID {
		return nil, model.NewValidationError("支払者と受益者には異なる利用者を指定してください")
	}
	if !model.ValidCurrency(input.Amount.Currency) {
		return nil, model.NewValidationError(fmt.Sprintf("対応していない通貨です: %s", input.Amount.Currency))
	}
	if !input.Amount.IsPositive() {
		return nil, model.NewValidationError("金額には正の値を指定してください")
	}

	// 当事者が実在するユーザーであることを確認
	for _, partyID := range []string{input.PayingPartyID, input.OnBehalfOfPartyID} {
		party, err := s.userRepo.FindByID(ctx, partyID)
		if err != nil {
			return nil, err
		}
		if party == nil {
			return nil, model.NewValidationError(fmt.Sprintf("指定された利用者が存在しません: %s", partyID))
		}
	}

	comment := s.sanitizer.Sanitize(input.Comment)
	if utf8.RuneCountInString(comment) > model.MaxCommentLength {
		return nil, model.NewValidationError(fmt.Sprintf("コメントは%d文字以内で指定してください", model.MaxCommentLength))
	}

	now := time.Now()
	d := &model.Disbursement{
		ID:                uuid.New().String(),
		OwnerID:           ownerID,
		PayingPartyID:     input.PayingPartyID,
		OnBehalfOfPartyID: input.OnBehalfOfPartyID,
		Amount:            input.Amount,
		Comment:           comment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.disbRepo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.collector.RecordDisbursementCreated(string(d.Amount.Currency))

	return d, nil
}

// Get は呼び出しユーザーが所有する立替を取得する。
// 存在しない場合と他ユーザー所有の場合は、存在の有無を漏らさないため同一のNotFoundを返す。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Disbursement, error) {
	d, err := s.disbRepo.FindOneOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.NewDisbursementNotFoundError(id)
	}
	return d, nil
}

// List は呼び出しユーザーが所有する有効な立替の1ページと総数を返す。
// limitが0以下の場合はDefaultListLimit、MaxListLimit超はMaxListLimitに丸める。
// offsetが負の場合は0に丸める。
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	disbursements, err := s.disbRepo.FindAllOwned(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := s.disbRepo.CountOwned(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &Page{
		Disbursements: disbursements,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	}, nil
}

// Delete は呼び出しユーザーが所有する立替をソフトデリートする。
// 精算済みの立替は削除できない（精算金額の根拠を保持するため）。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	d, err := s.disbRepo.FindOneOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if d == nil {
		return model.NewDisbursementNotFoundError(id)
	}
	if d.IsSettled() {
		return model.NewDisbursementSettledError(id)
	}

	return s.disbRepo.SoftDelete(ctx, id)
}
