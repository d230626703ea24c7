// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tally/internal/model"
)

// ErrLinkConflict は精算リンクの書き込み時に、対象の立替の一部が
// 並行するトランザクションで先に精算またはソフトデリートされていたことを示す。
// 呼び出し側はDisbursementMismatch系の拒否として扱う。
var ErrLinkConflict = errors.New("some disbursements were claimed or deleted concurrently")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindBySubject はIdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindBySubject(ctx context.Context, subjectID string) (*model.User, error)

	// CreateIfAbsent はsubjectに対応するユーザーを作成する。
	// 同一subjectのユーザーが並行して作成された場合は既存行を返す（冪等）。
	CreateIfAbsent(ctx context.Context, user *model.User) (*model.User, error)
}

// DisbursementRepository は立替データの永続化インターフェース。
// 参照系はすべてソフトデリート済みの行を除外する。
type DisbursementRepository interface {
	// Create は立替を作成する。
	Create(ctx context.Context, d *model.Disbursement) error

	// FindOneOwned は指定IDかつ指定ownerの有効な立替を取得する。
	// 見つからない場合（他ユーザー所有・削除済みを含む）はnilを返す。
	FindOneOwned(ctx context.Context, id, ownerID string) (*model.Disbursement, error)

	// FindAllOwned はownerの有効な立替一覧をlimit/offsetページネーションで返す。
	FindAllOwned(ctx context.Context, ownerID string, limit, offset int) ([]*model.Disbursement, error)

	// CountOwned はownerの有効な立替の総数を返す。
	CountOwned(ctx context.Context, ownerID string) (int, error)

	// FindAffectedForSettlement は精算候補となる立替を取得する。
	// 条件: idが指定集合に含まれ、有効（未削除）かつ未精算で、
	// 当事者ペアが(receivingParty, sendingParty)のいずれかの向きで一致すること。
	FindAffectedForSettlement(ctx context.Context, ids []string, receivingPartyID, sendingPartyID string) ([]*model.Disbursement, error)

	// SoftDelete は立替をソフトデリートする。deleted_atに現在時刻を設定する。
	// 対象が存在しないか既に削除済みの場合はエラーを返す。
	SoftDelete(ctx context.Context, id string) error
}

// SettlementRepository は精算データの永続化インターフェース。
type SettlementRepository interface {
	// CreateWithLinks は精算の挿入と、対象立替へのリンク設定を
	// 単一トランザクションで実行する。両方がコミットされるか、どちらも行われないかのいずれか。
	// リンク対象の一部が並行して精算・削除されていた場合はロールバックし
	// ErrLinkConflictを返す。
	CreateWithLinks(ctx context.Context, s *model.Settlement, disbursementIDs []string) error

	// FindOneOwned は指定IDかつ指定ownerの有効な精算を取得する。見つからない場合はnilを返す。
	FindOneOwned(ctx context.Context, id, ownerID string) (*model.Settlement, error)

	// FindAllOwned はownerの有効な精算一覧を返す。
	FindAllOwned(ctx context.Context, ownerID string) ([]*model.Settlement, error)

	// CountOwned はownerの有効な精算の総数を返す。
	CountOwned(ctx context.Context, ownerID string) (int, error)

	// SoftDelete は精算をソフトデリートする。立替側のsettlement_idリンクは変更しない。
	SoftDelete(ctx context.Context, id string) error
}
