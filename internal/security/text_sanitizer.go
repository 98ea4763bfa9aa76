package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部由来の文字列（ページタイトル、メモ本文）からHTMLを除去する。
// bluemondayのStrictPolicyで全タグを取り除いた後、エンティティを復元し空白を正規化する。
// 出力はプレーンテキストであり、表示時にはエスケープが必要。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はHTMLタグを除去し、連続する空白を1つにまとめたプレーンテキストを返す。
func (s *TextSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}
