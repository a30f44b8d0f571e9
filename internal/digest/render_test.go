package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/security"
)

func TestNewRenderer_AppURL(t *testing.T) {
	tests := []struct {
		name   string
		appURL string
		want   string
	}{
		{"未設定はデフォルト", "", "http://localhost:3000/dashboard"},
		{"末尾スラッシュを除去", "https://jobs.example.com//", "https://jobs.example.com/dashboard"},
		{"そのまま使用", "https://jobs.example.com", "https://jobs.example.com/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.appURL, security.NewTextSanitizer())
			if got := r.DashboardURL(); got != tt.want {
				t.Errorf("DashboardURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderer_Subject(t *testing.T) {
	r := NewRenderer("", security.NewTextSanitizer())

	tests := []struct {
		freq  model.Frequency
		count int
		want  string
	}{
		{model.FrequencyDaily, 1, "Daily job digest: 1 new job"},
		{model.FrequencyDaily, 2, "Daily job digest: 2 new jobs"},
		{model.FrequencyWeekly, 1, "Weekly job digest: 1 new job"},
		{model.FrequencyWeekly, 12, "Weekly job digest: 12 new jobs"},
	}

	for _, tt := range tests {
		if got := r.Subject(tt.freq, tt.count); got != tt.want {
			t.Errorf("Subject(%s, %d) = %q, want %q", tt.freq, tt.count, got, tt.want)
		}
	}
}

func TestRenderer_JobURL_EscapesID(t *testing.T) {
	r := NewRenderer("https://jobs.example.com", security.NewTextSanitizer())

	got := r.JobURL("a b&c")
	want := "https://jobs.example.com/dashboard?jobId=a+b%26c"
	if got != want {
		t.Errorf("JobURL = %q, want %q", got, want)
	}
}

func TestRenderer_HTML_EscapesUserContent(t *testing.T) {
	r := NewRenderer("https://jobs.example.com", security.NewTextSanitizer())
	groups := []model.CompanyGroup{{
		CompanyID:   "c1",
		CompanyName: `Tom & Jerry <script>alert(1)</script>`,
		Jobs: []model.JobEntry{
			{JobID: "j1", JobTitle: `<img src=x onerror=alert(1)>Backend "Lead"`, CreatedAt: time.Now()},
		},
	}}

	got := r.HTML(&model.Subscriber{Name: "Ann"}, model.FrequencyDaily, groups)

	for _, bad := range []string{"<script>", "<img", "onerror"} {
		if strings.Contains(got, bad) {
			t.Errorf("HTML本文に %q が含まれてはならない:\n%s", bad, got)
		}
	}
	for _, want := range []string{
		"Tom &amp; Jerry",
		"Backend &#34;Lead&#34;",
		`href="https://jobs.example.com/dashboard?jobId=j1"`,
		`href="https://jobs.example.com/dashboard"`,
		"Hi Ann,",
		"last 24 hours",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("HTML本文に %q が含まれていない:\n%s", want, got)
		}
	}
}

func TestRenderer_Text(t *testing.T) {
	r := NewRenderer("https://jobs.example.com", security.NewTextSanitizer())
	groups := []model.CompanyGroup{
		{CompanyID: "c1", CompanyName: "Acme", Jobs: []model.JobEntry{{JobID: "j1", JobTitle: "Go Engineer"}}},
		{CompanyID: "c2", CompanyName: "Globex", Jobs: []model.JobEntry{{JobID: "j2", JobTitle: "SRE"}}},
	}

	got := r.Text(&model.Subscriber{}, model.FrequencyWeekly, groups)

	want := "Hi,\n\n" +
		"Here are the new jobs posted in the last 7 days by companies you follow.\n" +
		"\nAcme\n- Go Engineer: https://jobs.example.com/dashboard?jobId=j1\n" +
		"\nGlobex\n- SRE: https://jobs.example.com/dashboard?jobId=j2\n" +
		"\nView all jobs on your dashboard: https://jobs.example.com/dashboard\n"
	if got != want {
		t.Errorf("Text() =\n%s\nwant\n%s", got, want)
	}
}
