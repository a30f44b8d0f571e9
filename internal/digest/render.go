package digest

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/security"
)

// DefaultAppURL はAPP_URL未設定時に使用するリンクのベースURL。
const DefaultAppURL = "http://localhost:3000"

// Renderer はダイジェストの件名と本文を生成する。
type Renderer struct {
	appURL    string
	sanitizer security.TextSanitizer
}

// NewRenderer はRendererを生成する。
// appURLが空の場合はDefaultAppURLを使用し、末尾のスラッシュは除去する。
func NewRenderer(appURL string, sanitizer security.TextSanitizer) *Renderer {
	appURL = strings.TrimRight(strings.TrimSpace(appURL), "/")
	if appURL == "" {
		appURL = DefaultAppURL
	}
	return &Renderer{appURL: appURL, sanitizer: sanitizer}
}

// Subject は "{Daily|Weekly} job digest: N new job(s)" 形式の件名を返す。
func (r *Renderer) Subject(freq model.Frequency, count int) string {
	noun := "jobs"
	if count == 1 {
		noun = "job"
	}
	return fmt.Sprintf("%s job digest: %d new %s", freq.Label(), count, noun)
}

// DashboardURL はダッシュボードへのリンクを返す。
func (r *Renderer) DashboardURL() string {
	return r.appURL + "/dashboard"
}

// JobURL は求人を開いた状態のダッシュボードへのリンクを返す。
func (r *Renderer) JobURL(jobID string) string {
	return r.DashboardURL() + "?jobId=" + url.QueryEscape(jobID)
}

// Text はプレーンテキスト本文を返す。
func (r *Renderer) Text(sub *model.Subscriber, freq model.Frequency, groups []model.CompanyGroup) string {
	var b strings.Builder

	b.WriteString(r.greeting(sub))
	b.WriteString("\n\n")
	b.WriteString(introText(freq))
	b.WriteString("\n")

	for _, g := range groups {
		b.WriteString("\n")
		b.WriteString(r.sanitizer.Sanitize(g.CompanyName))
		b.WriteString("\n")
		for _, job := range g.Jobs {
			fmt.Fprintf(&b, "- %s: %s\n", r.sanitizer.Sanitize(job.JobTitle), r.JobURL(job.JobID))
		}
	}

	b.WriteString("\nView all jobs on your dashboard: ")
	b.WriteString(r.DashboardURL())
	b.WriteString("\n")

	return b.String()
}

// HTML はHTML本文を返す。
// 企業名と求人タイトルはサニタイズ後にエスケープして埋め込む。
func (r *Renderer) HTML(sub *model.Subscriber, freq model.Frequency, groups []model.CompanyGroup) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2937;">`)
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(r.greeting(sub)))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(introText(freq)))

	for _, g := range groups {
		fmt.Fprintf(&b, `<h3 style="margin-bottom:4px;">%s</h3><ul>`,
			html.EscapeString(r.sanitizer.Sanitize(g.CompanyName)))
		for _, job := range g.Jobs {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`,
				html.EscapeString(r.JobURL(job.JobID)),
				html.EscapeString(r.sanitizer.Sanitize(job.JobTitle)))
		}
		b.WriteString("</ul>")
	}

	fmt.Fprintf(&b, `<p><a href="%s">View all jobs on your dashboard</a></p>`,
		html.EscapeString(r.DashboardURL()))
	b.WriteString("</body></html>")

	return b.String()
}

func (r *Renderer) greeting(sub *model.Subscriber) string {
	if sub != nil {
		if name := r.sanitizer.Sanitize(sub.Name); name != "" {
			return "Hi " + name + ","
		}
	}
	return "Hi,"
}

// introText は配信頻度ごとの導入文を返す。
func introText(freq model.Frequency) string {
	if freq == model.FrequencyWeekly {
		return "Here are the new jobs posted in the last 7 days by companies you follow."
	}
	return "Here are the new jobs posted in the last 24 hours by companies you follow."
}
