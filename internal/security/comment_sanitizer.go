// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CommentSanitizerService は立替に付与されるコメントをサニタイズし、
// 保存データ経由のXSSからクライアントを保護する。
// コメントは平文として扱うため、bluemondayのStrictPolicyで
// すべてのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CommentSanitizerService はコメントのサニタイズ機能のインターフェースを定義する。
// 立替の作成時、保存前に使用される。
type CommentSanitizerService interface {
	// Sanitize はコメントからすべてのHTMLタグを除去した平文を返す。
	// 前後の空白も除去する。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// commentSanitizer はCommentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type commentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はCommentSanitizerServiceの新しいインスタンスを生成する。
// コメントにHTMLを許可する理由はないため、全タグを除去するStrictPolicyを使用する。
func NewCommentSanitizer() *commentSanitizer {
	return &commentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はコメントからすべてのHTMLタグを除去した平文を返す。
func (s *commentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ CommentSanitizerService = (*commentSanitizer)(nil)
