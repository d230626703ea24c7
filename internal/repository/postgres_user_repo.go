package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tally/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject_id, is_active, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.SubjectID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// FindBySubject はIdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject_id, is_active, created_at, updated_at FROM users WHERE subject_id = $1`,
		subjectID,
	).Scan(&user.ID, &user.SubjectID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subjectによるユーザーの検索に失敗しました: %w", err)
	}

	return user, nil
}

// CreateIfAbsent はsubjectに対応するユーザーを作成する。
// 同一subjectの行が並行して挿入された場合はON CONFLICT DO NOTHINGで吸収し、
// 既存行を取得して返す。
func (r *PostgresUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, subject_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id) DO NOTHING`,
		user.ID, user.SubjectID, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	created, err := r.FindBySubject(ctx, user.SubjectID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("作成直後のユーザーが見つかりません: subject=%s", user.SubjectID)
	}
	return created, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
