package app

import (
	"fmt"
	"strings"

	"github.com/hitoshi/jobmatch/internal/model"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はcronスケジューラとクリーンアップジョブを起動することを示す。
	CommandWorker Command = "worker"
	// CommandDigest はダイジェストを1回だけ実行することを示す。
	CommandDigest Command = "digest"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "worker":
		return CommandWorker, args[1:]
	case "serve":
		return CommandServe, args[1:]
	case "digest":
		return CommandDigest, args[1:]
	case "migrate":
		return CommandMigrate, args[1:]
	case "healthcheck":
		return CommandHealthcheck, args[1:]
	default:
		return CommandServe, nil
	}
}

// ParseDigestArgs は digest サブコマンドの引数を解析する。
//
//	digest <DAILY|WEEKLY> [--commit]
//
// --commit は位置引数の前後どちらにも置ける。
func ParseDigestArgs(args []string) (model.Frequency, bool, error) {
	var (
		rawFreq string
		commit  bool
	)

	for _, arg := range args {
		switch {
		case arg == "--commit" || arg == "-commit":
			commit = true
		case strings.HasPrefix(arg, "-"):
			return "", false, fmt.Errorf("不明なオプションです: %s", arg)
		case rawFreq != "":
			return "", false, fmt.Errorf("配信頻度は1つだけ指定してください: %s", arg)
		default:
			rawFreq = arg
		}
	}

	if rawFreq == "" {
		return "", false, fmt.Errorf("使い方: digest <DAILY|WEEKLY> [--commit]")
	}

	freq, err := model.ParseFrequency(rawFreq)
	if err != nil {
		return "", false, err
	}
	return freq, commit, nil
}
