package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tally/internal/model"
)

// disbursementColumns は立替のSELECT句。スキャン順はscanDisbursementと一致させること。
const disbursementColumns = `id, owner_id, paying_party_id, on_behalf_of_party_id,
	amount, currency, COALESCE(comment, ''), settlement_id, created_at, updated_at, deleted_at`

// PostgresDisbursementRepo はPostgreSQLを使用した立替リポジトリ。
type PostgresDisbursementRepo struct {
	db *sql.DB
}

// NewPostgresDisbursementRepo はPostgresDisbursementRepoを生成する。
func NewPostgresDisbursementRepo(db *sql.DB) *PostgresDisbursementRepo {
	return &PostgresDisbursementRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDisbursement は1行を立替モデルに読み取る。
func scanDisbursement(row rowScanner) (*model.Disbursement, error) {
	d := &model.Disbursement{}
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.PayingPartyID, &d.OnBehalfOfPartyID,
		&d.Amount.Amount, &d.Amount.Currency, &d.Comment, &d.SettlementID,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create は立替を作成する。
func (r *PostgresDisbursementRepo) Create(ctx context.Context, d *model.Disbursement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO disbursements
		 (id, owner_id, paying_party_id, on_behalf_of_party_id, amount, currency, comment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		d.ID, d.OwnerID, d.PayingPartyID, d.OnBehalfOfPartyID,
		d.Amount.Amount, d.Amount.Currency, d.Comment, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("立替の作成に失敗しました: %w", err)
	}
	return nil
}

// FindOneOwned は指定IDかつ指定ownerの有効な立替を取得する。見つからない場合はnilを返す。
func (r *PostgresDisbursementRepo) FindOneOwned(ctx context.Context, id, ownerID string) (*model.Disbursement, error) {
	d, err := scanDisbursement(r.db.QueryRowContext(ctx,
		`SELECT `+disbursementColumns+`
		 FROM disbursements
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`,
		id, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("立替の取得に失敗しました: %w", err)
	}
	return d, nil
}

// FindAllOwned はownerの有効な立替一覧をlimit/offsetページネーションで返す。
func (r *PostgresDisbursementRepo) FindAllOwned(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+disbursementColumns+`
		 FROM disbursements
		 WHERE owner_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("立替一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []*model.Disbursement
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("立替行の読み取りに失敗しました: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("立替一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}

// CountOwned はownerの有効な立替の総数を返す。
func (r *PostgresDisbursementRepo) CountOwned(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disbursements WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("立替数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// FindAffectedForSettlement は精算候補となる立替を取得する。
// 有効（未削除）かつ未精算で、当事者ペアが(receivingParty, sendingParty)の
// いずれかの向きで一致する立替のみを返す。
func (r *PostgresDisbursementRepo) FindAffectedForSettlement(ctx context.Context, ids []string, receivingPartyID, sendingPartyID string) ([]*model.Disbursement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+disbursementColumns+`
		 FROM disbursements
		 WHERE id = ANY($1)
		   AND deleted_at IS NULL
		   AND settlement_id IS NULL
		   AND ((paying_party_id = $2 AND on_behalf_of_party_id = $3)
		     OR (paying_party_id = $3 AND on_behalf_of_party_id = $2))`,
		pq.Array(ids), receivingPartyID, sendingPartyID,
	)
	if err != nil {
		return nil, fmt.Errorf("精算候補の立替の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []*model.Disbursement
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("精算候補行の読み取りに失敗しました: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("精算候補の走査に失敗しました: %w", err)
	}
	return result, nil
}

// SoftDelete は立替をソフトデリートする。
// 対象が存在しないか既に削除済みの場合はエラーを返す。settlement_idは変更しない。
func (r *PostgresDisbursementRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE disbursements SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("立替の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("立替が見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ DisbursementRepository = (*PostgresDisbursementRepo)(nil)
