package app

import (
	"testing"

	"github.com/hitoshi/jobmatch/internal/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     Command
		wantRest []string
	}{
		{"引数なしはserve", []string{}, CommandServe, nil},
		{"serve", []string{"serve"}, CommandServe, []string{}},
		{"worker", []string{"worker"}, CommandWorker, []string{}},
		{"digest", []string{"digest", "DAILY", "--commit"}, CommandDigest, []string{"DAILY", "--commit"}},
		{"migrate", []string{"migrate"}, CommandMigrate, []string{}},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck, []string{}},
		{"不明なコマンドはserve", []string{"unknown"}, CommandServe, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := ParseCommand(tt.args)
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
			if len(rest) != len(tt.wantRest) {
				t.Fatalf("rest = %v, want %v", rest, tt.wantRest)
			}
			for i := range rest {
				if rest[i] != tt.wantRest[i] {
					t.Errorf("rest[%d] = %q, want %q", i, rest[i], tt.wantRest[i])
				}
			}
		})
	}
}

func TestParseDigestArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantFreq   model.Frequency
		wantCommit bool
	}{
		{"DAILYのみ", []string{"DAILY"}, model.FrequencyDaily, false},
		{"小文字", []string{"weekly"}, model.FrequencyWeekly, false},
		{"commit後置", []string{"DAILY", "--commit"}, model.FrequencyDaily, true},
		{"commit前置", []string{"--commit", "WEEKLY"}, model.FrequencyWeekly, true},
		{"単一ハイフン", []string{"WEEKLY", "-commit"}, model.FrequencyWeekly, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, commit, err := ParseDigestArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseDigestArgs(%v) がエラーを返した: %v", tt.args, err)
			}
			if freq != tt.wantFreq {
				t.Errorf("freq = %q, want %q", freq, tt.wantFreq)
			}
			if commit != tt.wantCommit {
				t.Errorf("commit = %v, want %v", commit, tt.wantCommit)
			}
		})
	}
}

func TestParseDigestArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"引数なし", nil},
		{"commitのみ", []string{"--commit"}},
		{"不明な頻度", []string{"MONTHLY"}},
		{"不明なオプション", []string{"DAILY", "--dry-run"}},
		{"頻度が複数", []string{"DAILY", "WEEKLY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseDigestArgs(tt.args); err == nil {
				t.Errorf("ParseDigestArgs(%v) はエラーを返すべき", tt.args)
			}
		})
	}
}
