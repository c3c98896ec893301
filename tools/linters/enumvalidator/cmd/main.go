package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/imranmit2020/pro-login-flow-sub000/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
