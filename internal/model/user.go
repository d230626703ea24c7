// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdPのsubjectをキーとして、初回のトークン検証成功時に自動作成される。
// IsActiveがfalseのユーザーは、トークンが有効でも全操作を拒否される。
type User struct {
	ID        string
	SubjectID string // IdPが発行する安定したsubject識別子
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenIdentity はIdPのトークン検証結果を表す。
// subjectの他に、監査用のセッションIDと発行・失効時刻を保持する。
type TokenIdentity struct {
	Subject   string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
