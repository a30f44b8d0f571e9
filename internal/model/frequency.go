// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Frequency はダイジェストの配信頻度（ティア）を表す。
type Frequency string

const (
	// FrequencyDaily は日次ダイジェスト。
	FrequencyDaily Frequency = "DAILY"
	// FrequencyWeekly は週次ダイジェスト。
	FrequencyWeekly Frequency = "WEEKLY"
)

const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 168 * time.Hour
)

// ParseFrequency は文字列をFrequencyに変換する。
// 前後の空白を除去し、大文字小文字を区別せずにDAILY/WEEKLYのみを受け付ける。
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToUpper(strings.TrimSpace(s))) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	default:
		return "", NewInvalidFrequencyError(s)
	}
}

// Window はルックバックウィンドウの長さを返す。
// DAILYは24時間、WEEKLYは168時間。
func (f Frequency) Window() time.Duration {
	if f == FrequencyWeekly {
		return weeklyWindow
	}
	return dailyWindow
}

// Label は件名に使用する表示名を返す。
func (f Frequency) Label() string {
	if f == FrequencyWeekly {
		return "Weekly"
	}
	return "Daily"
}

// Valid はFrequencyが定義済みの値かどうかを返す。
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}
