// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は企業名や求人タイトルなど、ユーザーが入力した文字列を
// メール本文に埋め込む前にプレーンテキスト化する。
// bluemondayのStrictPolicyで全てのタグを除去し、HTMLエンティティを復元する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力文字列のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// 連続する空白は1つにまとめ、前後の空白を除去する。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyは出力をエスケープするため、アンエスケープしてから返す。
// HTMLとして埋め込む側で改めてエスケープすること。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}
