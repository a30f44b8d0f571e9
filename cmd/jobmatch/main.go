// Command jobmatch は求人通知ダイジェストのAPIサーバー・ワーカー・運用コマンドを提供する。
//
//	jobmatch [serve]                      トリガーAPIサーバーを起動する
//	jobmatch worker                       cronスケジューラとクリーンアップジョブを起動する
//	jobmatch digest <DAILY|WEEKLY> [--commit]  ダイジェストを1回実行する
//	jobmatch migrate                      マイグレーションを適用する
//	jobmatch healthcheck                  /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jobmatch/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
