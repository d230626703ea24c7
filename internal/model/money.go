// Package model はドメインモデルを定義する。
package model

import "fmt"

// Currency は対応通貨を表す。
type Currency string

const (
	// CurrencyJPY は日本円。最小単位は1円。
	CurrencyJPY Currency = "JPY"
	// CurrencyEUR はユーロ。最小単位は1セント。
	CurrencyEUR Currency = "EUR"
)

// ValidCurrency は通貨コードが対応通貨かを検証する。
func ValidCurrency(c Currency) bool {
	switch c {
	case CurrencyJPY, CurrencyEUR:
		return true
	default:
		return false
	}
}

// Money は金額の値オブジェクト。
// 金額は通貨の最小単位（円、セント）の整数で保持し、浮動小数点は使わない。
// 例: 10.50 EUR は {Amount: 1050, Currency: EUR}。
type Money struct {
	Amount   int64
	Currency Currency
}

// Add は同一通貨のMoneyを加算する。通貨が異なる場合はエラーを返す。
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s + %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Negate は符号を反転したMoneyを返す。
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs は金額を絶対値にしたMoneyを返す。
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return m.Negate()
	}
	return m
}

// IsPositive は金額が正であるかを返す。
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// String は "1050 EUR" 形式の表記を返す。ログおよびエラーメッセージ用。
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
