package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tally/internal/model"
)

// settlementColumns は精算のSELECT句。スキャン順はscanSettlementと一致させること。
const settlementColumns = `id, owner_id, sending_party_id, receiving_party_id,
	amount_paid, currency, settled_at, created_at, updated_at, deleted_at`

// PostgresSettlementRepo はPostgreSQLを使用した精算リポジトリ。
type PostgresSettlementRepo struct {
	db *sql.DB
}

// NewPostgresSettlementRepo はPostgresSettlementRepoを生成する。
func NewPostgresSettlementRepo(db *sql.DB) *PostgresSettlementRepo {
	return &PostgresSettlementRepo{db: db}
}

// scanSettlement は1行を精算モデルに読み取る。
func scanSettlement(row rowScanner) (*model.Settlement, error) {
	s := &model.Settlement{}
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.SendingPartyID, &s.ReceivingPartyID,
		&s.AmountPaid.Amount, &s.AmountPaid.Currency, &s.SettledAt,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateWithLinks は精算の挿入と対象立替へのリンク設定を単一トランザクションで実行する。
//
// リンクのUPDATEは settlement_id IS NULL AND deleted_at IS NULL を再確認するため、
// サービス層の読み取りとこの書き込みの間に別の精算が同じ立替を確保していた場合、
// 更新行数が不足してロールバックされ、ErrLinkConflictが返る。
// 精算がリンクなしで存在すること、立替が二重リンクされることはどちらも起こらない。
func (r *PostgresSettlementRepo) CreateWithLinks(ctx context.Context, s *model.Settlement, disbursementIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 精算を挿入
	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements
		 (id, owner_id, sending_party_id, receiving_party_id, amount_paid, currency, settled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.OwnerID, s.SendingPartyID, s.ReceivingPartyID,
		s.AmountPaid.Amount, s.AmountPaid.Currency, s.SettledAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("精算の挿入に失敗しました: %w", err)
	}

	// 対象立替にリンクを設定
	result, err := tx.ExecContext(ctx,
		`UPDATE disbursements
		 SET settlement_id = $1, updated_at = now()
		 WHERE id = ANY($2) AND settlement_id IS NULL AND deleted_at IS NULL`,
		s.ID, pq.Array(disbursementIDs),
	)
	if err != nil {
		return fmt.Errorf("立替への精算リンクの設定に失敗しました: %w", err)
	}

	linked, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("リンク結果の取得に失敗しました: %w", err)
	}
	if linked != int64(len(disbursementIDs)) {
		// defer側のRollbackに任せ、コミットせずに返す
		return ErrLinkConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindOneOwned は指定IDかつ指定ownerの有効な精算を取得する。見つからない場合はnilを返す。
func (r *PostgresSettlementRepo) FindOneOwned(ctx context.Context, id, ownerID string) (*model.Settlement, error) {
	s, err := scanSettlement(r.db.QueryRowContext(ctx,
		`SELECT `+settlementColumns+`
		 FROM settlements
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`,
		id, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("精算の取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindAllOwned はownerの有効な精算一覧を返す。
func (r *PostgresSettlementRepo) FindAllOwned(ctx context.Context, ownerID string) ([]*model.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+settlementColumns+`
		 FROM settlements
		 WHERE owner_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("精算一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []*model.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("精算行の読み取りに失敗しました: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("精算一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}

// CountOwned はownerの有効な精算の総数を返す。
func (r *PostgresSettlementRepo) CountOwned(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settlements WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("精算数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// SoftDelete は精算をソフトデリートする。立替側のsettlement_idリンクは変更しない。
func (r *PostgresSettlementRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("精算の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("精算が見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ SettlementRepository = (*PostgresSettlementRepo)(nil)
