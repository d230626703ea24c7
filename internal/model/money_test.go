package model

import "testing"

func TestValidCurrency(t *testing.T) {
	tests := []struct {
		currency Currency
		want     bool
	}{
		{CurrencyJPY, true},
		{CurrencyEUR, true},
		{"USD", false},
		{"jpy", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidCurrency(tt.currency); got != tt.want {
			t.Errorf("ValidCurrency(%q) = %v, want %v", tt.currency, got, tt.want)
		}
	}
}

func TestMoney_Add(t *testing.T) {
	a := Money{Amount: 1050, Currency: CurrencyEUR}
	b := Money{Amount: 950, Currency: CurrencyEUR}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.Amount != 2000 || sum.Currency != CurrencyEUR {
		t.Errorf("sum = %v, want {2000 EUR}", sum)
	}
}

// 異なる通貨の加算は値の構築段階で失敗する。
func TestMoney_Add_CurrencyMismatch(t *testing.T) {
	a := Money{Amount: 1000, Currency: CurrencyJPY}
	b := Money{Amount: 1000, Currency: CurrencyEUR}

	if _, err := a.Add(b); err == nil {
		t.Error("Add succeeded for mismatched currencies, want error")
	}
}

func TestMoney_Negate(t *testing.T) {
	m := Money{Amount: 500, Currency: CurrencyJPY}
	n := m.Negate()
	if n.Amount != -500 || n.Currency != CurrencyJPY {
		t.Errorf("Negate = %v, want {-500 JPY}", n)
	}
	if n.Negate() != m {
		t.Error("double negation must restore the original value")
	}
}

func TestMoney_Abs(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{500, 500},
		{-500, 500},
		{0, 0},
	}

	for _, tt := range tests {
		m := Money{Amount: tt.amount, Currency: CurrencyJPY}
		if got := m.Abs(); got.Amount != tt.want || got.Currency != CurrencyJPY {
			t.Errorf("Abs(%d) = %v, want {%d JPY}", tt.amount, got, tt.want)
		}
	}
}

func TestMoney_IsPositive(t *testing.T) {
	tests := []struct {
		amount int64
		want   bool
	}{
		{1, true},
		{0, false},
		{-1, false},
	}

	for _, tt := range tests {
		m := Money{Amount: tt.amount, Currency: CurrencyJPY}
		if got := m.IsPositive(); got != tt.want {
			t.Errorf("IsPositive(%d) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestMoney_String(t *testing.T) {
	m := Money{Amount: 1050, Currency: CurrencyEUR}
	if got := m.String(); got != "1050 EUR" {
		t.Errorf("String = %q, want %q", got, "1050 EUR")
	}
}
