// Package main is the entry point for the weibo CLI.
package main

import "github.com/weibokit/weibo/internal/cli"

func main() {
	cli.Execute()
}
