// Command admin 运维命令：执行数据库迁移、创建用户。
//
//	admin migrate [-down N]
//	admin createuser -username U -role admin [-full-name 名字] [-email a@b]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
