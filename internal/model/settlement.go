// Package model はドメインモデルを定義する。
package model

import "time"

// Settlement は精算（送金者が受領者に支払い、一連の立替を清算した記録）を表す。
// 1つの精算は複数の立替にリンクされる（disbursement.settlement_id経由の1:N）。
// 作成後は更新されない。ソフトデリートのみ可能で、削除しても立替側のリンクは残す。
type Settlement struct {
	ID               string
	OwnerID          string // 精算を起案した利用者。現行ポリシーでは送金者と一致する
	SendingPartyID   string
	ReceivingPartyID string
	AmountPaid       Money
	SettledAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// IsDeleted はソフトデリート済みかを返す。
func (s *Settlement) IsDeleted() bool {
	return s.DeletedAt != nil
}
