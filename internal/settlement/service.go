// Package settlement は精算のドメインロジックを提供する。
//
// 精算の作成は照合（reconciliation）を伴う。クライアントが申告した
// 立替の集合・金額・通貨を、保存済みの立替から独立に再計算した結果と
// 突き合わせ、完全に一致した場合のみ精算を確定する。
// 一致しない場合は一切の書き込みを行わず、理由を示すエラーで全体を拒否する。
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tally/internal/metrics"
	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/repository"
)

// 照合拒否メトリクスのreasonラベル値。
const (
	rejectReasonDisbursementMismatch = "disbursement_mismatch"
	rejectReasonAmountMismatch       = "amount_mismatch"
	rejectReasonCurrencyMismatch     = "currency_mismatch"
	rejectReasonLinkConflict         = "link_conflict"
)

// ProposeInput は精算作成の入力。クライアントの申告内容をそのまま保持する。
// SettledAtは実際に送金が行われた日時。ゼロ値の場合は現在時刻を採用する。
type ProposeInput struct {
	SendingPartyID   string
	ReceivingPartyID string
	AmountPaid       model.Money
	DisbursementIDs  []string
	SettledAt        time.Time
}

// Service は精算のサービス層。
// 照合付きの作成、参照、一覧、ソフトデリートを提供する。
type Service struct {
	settleRepo repository.SettlementRepository
	disbRepo   repository.DisbursementRepository
	collector  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	settleRepo repository.SettlementRepository,
	disbRepo repository.DisbursementRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		settleRepo: settleRepo,
		disbRepo:   disbRepo,
		collector:  collector,
	}
}

// Propose は申告された精算を照合し、一致した場合のみ確定する。
//
// 照合の手順:
//  1. 呼び出しユーザーが送金者本人であること（他人名義の精算は許可しない）
//  2. 入力の構文検証（立替IDの非空・重複なし、金額が正、対応通貨、送金者と受領者が別人）
//  3. 申告された立替のうち、有効・未精算で当事者ペアが一致するものを取得
//  4. 完全性検証: 取得件数が申告件数と一致しない場合は全体を拒否
//  5. 通貨検証: すべての立替が申告通貨と一致しない場合は全体を拒否
//  6. 金額検証: 立替から再計算した精算額と申告額の厳密一致
//  7. 精算の挿入と立替へのリンクを単一トランザクションで実行
//
// 金額の再計算は送金者視点の符号付き合計で行う。送金者が支払った立替は正、
// 受領者が支払った立替は負として合算し、申告額はその絶対値と一致しなければならない。
func (s *Service) Propose(ctx context.Context, callerID string, input ProposeInput) (*model.Settlement, error) {
	if callerID != input.SendingPartyID {
		return nil, model.NewForbiddenError("精算は送金者本人のみが作成できます")
	}

	if err := validateProposeInput(input); err != nil {
		return nil, err
	}

	affected, err := s.disbRepo.FindAffectedForSettlement(ctx,
		input.DisbursementIDs, input.ReceivingPartyID, input.SendingPartyID)
	if err != nil {
		return nil, err
	}

	// 完全性検証。欠落・他ペア・削除済み・精算済みのいずれが理由でも、
	// どのIDが問題かは区別せず全体を拒否する
	if len(affected) != len(input.DisbursementIDs) {
		s.collector.RecordReconciliationRejected(rejectReasonDisbursementMismatch)
		slog.Info("settlement rejected: disbursement set incomplete",
			slog.String("sender", input.SendingPartyID),
			slog.Int("claimed", len(input.DisbursementIDs)),
			slog.Int("found", len(affected)),
		)
		return nil, model.NewDisbursementMismatchError()
	}

	// 通貨検証と送金者視点の符号付き合計
	total := model.Money{Amount: 0, Currency: input.AmountPaid.Currency}
	for _, d := range affected {
		if d.Amount.Currency != input.AmountPaid.Currency {
			s.collector.RecordReconciliationRejected(rejectReasonCurrencyMismatch)
			return nil, model.NewCurrencyMismatchError()
		}

		signed := d.Amount
		if d.PayingPartyID != input.SendingPartyID {
			signed = signed.Negate()
		}
		total, err = total.Add(signed)
		if err != nil {
			return nil, err
		}
	}

	// 申告額は符号付き合計の絶対値と厳密一致すること。
	// 合計が負 = 送金者が債務者。合計が正 = 送金者が立替側で、
	// 立て替えた分を送金者発の精算として閉じる場合。どちらの向きも同じ絶対額で成立する
	expected := total.Abs()
	if expected.Amount != input.AmountPaid.Amount {
		s.collector.RecordReconciliationRejected(rejectReasonAmountMismatch)
		slog.Info("settlement rejected: amount mismatch",
			slog.String("sender", input.SendingPartyID),
			slog.String("expected", expected.String()),
			slog.String("claimed", input.AmountPaid.String()),
		)
		return nil, model.NewAmountMismatchError(expected, input.AmountPaid)
	}

	now := time.Now()
	settledAt := input.SettledAt
	if settledAt.IsZero() {
		settledAt = now
	}
	settlement := &model.Settlement{
		ID:               uuid.New().String(),
		OwnerID:          callerID,
		SendingPartyID:   input.SendingPartyID,
		ReceivingPartyID: input.ReceivingPartyID,
		AmountPaid:       input.AmountPaid,
		SettledAt:        settledAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.settleRepo.CreateWithLinks(ctx, settlement, input.DisbursementIDs); err != nil {
		// 読み取りと書き込みの間に別の精算が同じ立替を確保した場合も
		// 完全性違反として扱う
		if errors.Is(err, repository.ErrLinkConflict) {
			s.collector.RecordReconciliationRejected(rejectReasonLinkConflict)
			slog.Info("settlement rejected: concurrent link conflict",
				slog.String("sender", input.SendingPartyID),
			)
			return nil, model.NewDisbursementMismatchError()
		}
		return nil, err
	}

	s.collector.RecordSettlementCreated(string(settlement.AmountPaid.Currency))
	slog.Info("settlement created",
		slog.String("settlement_id", settlement.ID),
		slog.String("sender", settlement.SendingPartyID),
		slog.String("receiver", settlement.ReceivingPartyID),
		slog.Int("disbursements", len(input.DisbursementIDs)),
	)

	return settlement, nil
}

// validateProposeInput は精算作成入力の構文検証を行う。
func validateProposeInput(input ProposeInput) error {
	if input.SendingPartyID == "" || input.ReceivingPartyID == "" {
		return model.NewValidationError("送金者と受領者の両方を指定してください")
	}
	if input.SendingPartyID == input.ReceivingPartyID {
		return model.NewValidationError("送金者と受領者には異なる利用者を指定してください")
	}
	if !model.ValidCurrency(input.AmountPaid.Currency) {
		return model.NewValidationError("対応していない通貨です")
	}
	if !input.AmountPaid.IsPositive() {
		return model.NewValidationError("精算金額には正の値を指定してください")
	}
	if len(input.DisbursementIDs) == 0 {
		return model.NewValidationError("精算対象の立替を1件以上指定してください")
	}

	seen := make(map[string]struct{}, len(input.DisbursementIDs))
	for _, id := range input.DisbursementIDs {
		if id == "" {
			return model.NewValidationError("立替IDに空の値が含まれています")
		}
		if _, dup := seen[id]; dup {
			return model.NewValidationError("立替IDが重複しています")
		}
		seen[id] = struct{}{}
	}

	return nil
}

// Get は呼び出しユーザーが所有する精算を取得する。
// 存在しない場合と他ユーザー所有の場合は同一のNotFoundを返す。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Settlement, error) {
	settlement, err := s.settleRepo.FindOneOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, model.NewSettlementNotFoundError(id)
	}
	return settlement, nil
}

// List は呼び出しユーザーが所有する有効な精算の一覧と総数を返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Settlement, int, error) {
	settlements, err := s.settleRepo.FindAllOwned(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.settleRepo.CountOwned(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	return settlements, total, nil
}

// Delete は呼び出しユーザーが所有する精算をソフトデリートする。
// リンク済みの立替は精算済みのまま残る（精算の削除で立替が未精算に戻ることはない）。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	settlement, err := s.settleRepo.FindOneOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if settlement == nil {
		return model.NewSettlementNotFoundError(id)
	}

	return s.settleRepo.SoftDelete(ctx, id)
}
