// Package model はドメインモデルを定義する。
package model

// Subscriber はダイジェストメールの購読者を表す。
// 通知頻度の設定と配信先メールアドレスを持つユーザー。
type Subscriber struct {
	ID        string
	Email     string
	Name      string
	Frequency Frequency
}
