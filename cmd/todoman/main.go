// Command todoman はTODO管理アプリケーションのエントリポイント。
//
//	todoman [serve]            HTTPサーバーを起動する
//	todoman worker             期限切れセッションを定期削除する
//	todoman migrate [down [N]] マイグレーションを適用またはロールバックする
//	todoman healthcheck        起動中サーバーの/healthを確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/todoman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "todoman: %v\n", err)
		os.Exit(1)
	}
}
