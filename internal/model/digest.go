package model

import "time"

// JobEntry はダイジェスト内の求人1件を表す。
type JobEntry struct {
	JobID     string    `json:"jobId"`
	JobTitle  string    `json:"jobTitle"`
	CreatedAt time.Time `json:"createdAt"`
}

// CompanyGroup は購読者ごとに企業単位で集約した求人一覧。
// Jobsは作成日時の降順に並ぶ。ビルド処理の間だけ存在する。
type CompanyGroup struct {
	CompanyID   string
	CompanyName string
	Jobs        []JobEntry
}

// DigestPayload は購読者1人分のレンダリング済みダイジェスト。
// ビルドのたびに生成され、永続化されない。
type DigestPayload struct {
	UserID   string   `json:"userId"`
	Email    string   `json:"email"`
	Subject  string   `json:"subject"`
	HTML     string   `json:"html"`
	Text     string   `json:"text"`
	EventIDs []string `json:"eventIds"`
}

// RunResult はダイジェスト実行1回分の集計結果。
type RunResult struct {
	Frequency Frequency       `json:"frequency"`
	Commit    bool            `json:"commit"`
	Count     int             `json:"count"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Digests   []DigestPayload `json:"digests"`
}
