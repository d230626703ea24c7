// Package model はドメインモデルを定義する。
package model

import "time"

// MaxCommentLength はコメントの最大文字数。
const MaxCommentLength = 512

// Disbursement は立替（ある利用者が別の利用者の分を支払った記録）を表す。
//
// 状態遷移:
//
//	open    (SettlementID=nil, DeletedAt=nil)
//	settled (SettlementIDが設定される。以後、別の精算には選択できない)
//	deleted (DeletedAtが設定される。以後すべての取得・精算候補から除外される)
//
// settled後のソフトデリートは許可しない（精算金額の監査可能性を保つため）。
type Disbursement struct {
	ID                string
	OwnerID           string // 作成者。参照系・削除系の操作はownerのみ許可される
	PayingPartyID     string // 実際に支払った利用者
	OnBehalfOfPartyID string // 立て替えてもらった利用者
	Amount            Money
	Comment           string     // サニタイズ済み。最大512文字
	SettlementID      *string    // 精算済みの場合のみ非nil。リンクは1回限り
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time // ソフトデリートマーカー。nil = 有効
}

// IsSettled は精算済みかを返す。
func (d *Disbursement) IsSettled() bool {
	return d.SettlementID != nil
}

// IsDeleted はソフトデリート済みかを返す。
func (d *Disbursement) IsDeleted() bool {
	return d.DeletedAt != nil
}

// IsBetween は立替の当事者ペアが(a, b)のいずれかの向きで一致するかを返す。
// 精算候補の判定に使用する。
func (d *Disbursement) IsBetween(a, b string) bool {
	return (d.PayingPartyID == a && d.OnBehalfOfPartyID == b) ||
		(d.PayingPartyID == b && d.OnBehalfOfPartyID == a)
}
