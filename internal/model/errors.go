// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ledger, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredential    = "INVALID_CREDENTIAL"
	ErrCodeInactiveUser         = "INACTIVE_USER"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeDisbursementNotFound = "DISBURSEMENT_NOT_FOUND"
	ErrCodeSettlementNotFound   = "SETTLEMENT_NOT_FOUND"
	ErrCodeDisbursementMismatch = "DISBURSEMENT_MISMATCH"
	ErrCodeAmountMismatch       = "AMOUNT_MISMATCH"
	ErrCodeCurrencyMismatch     = "CURRENCY_MISMATCH"
	ErrCodeDisbursementSettled  = "DISBURSEMENT_SETTLED"
	ErrCodeValidation           = "VALIDATION_ERROR"
)

// NewInvalidCredentialError はトークン検証失敗エラーを生成する。
// トークンの欠落・改竄・期限切れ・未知の鍵・IdP到達不能のいずれも同一コードで返す。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "認証トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてトークンを取得し直してください。",
	}
}

// NewInactiveUserError は無効化済みユーザーのアクセスエラーを生成する。
func NewInactiveUserError() *APIError {
	return &APIError{
		Code:     ErrCodeInactiveUser,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作は許可されていません: %s", reason),
		Category: "auth",
		Action:   "操作の権限を確認してください。",
	}
}

// NewDisbursementNotFoundError は立替未検出エラーを生成する。
// 他ユーザー所有の立替も存在の有無を漏らさないため同一のエラーで返す。
func NewDisbursementNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeDisbursementNotFound,
		Message:  fmt.Sprintf("指定された立替が見つかりません: %s", id),
		Category: "ledger",
		Action:   "立替IDを確認してください。",
	}
}

// NewSettlementNotFoundError は精算未検出エラーを生成する。
func NewSettlementNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSettlementNotFound,
		Message:  fmt.Sprintf("指定された精算が見つかりません: %s", id),
		Category: "ledger",
		Action:   "精算IDを確認してください。",
	}
}

// NewDisbursementMismatchError は精算対象の立替集合が不完全な場合のエラーを生成する。
// 欠落ID・当事者不一致・削除済み・精算済みのいずれの理由でも全体を失敗させる。
func NewDisbursementMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeDisbursementMismatch,
		Message:  "指定された立替の一部または全部が、送金者と受領者の間の未精算の立替として特定できませんでした。",
		Category: "ledger",
		Action:   "立替IDの一覧と、各立替の支払者・受益者が精算の当事者と一致しているかを確認してください。",
	}
}

// NewAmountMismatchError は精算金額の不一致エラーを生成する。
func NewAmountMismatchError(expected, claimed Money) *APIError {
	return &APIError{
		Code:     ErrCodeAmountMismatch,
		Message:  fmt.Sprintf("対象の立替から算出した精算金額 %s と、指定された金額 %s が一致しません。", expected, claimed),
		Category: "ledger",
		Action:   "対象の立替の合計金額を確認してください。",
	}
}

// NewCurrencyMismatchError は精算対象に異なる通貨が混在する場合のエラーを生成する。
func NewCurrencyMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeCurrencyMismatch,
		Message:  "精算対象の立替に、指定された通貨と異なる通貨が含まれています。",
		Category: "ledger",
		Action:   "同一通貨の立替のみを1つの精算にまとめてください。",
	}
}

// NewDisbursementSettledError は精算済み立替への削除操作エラーを生成する。
func NewDisbursementSettledError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeDisbursementSettled,
		Message:  fmt.Sprintf("精算済みの立替は削除できません: %s", id),
		Category: "ledger",
		Action:   "精算済みの立替はリンクされた精算とともに保持されます。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を修正して再度お試しください。",
	}
}
