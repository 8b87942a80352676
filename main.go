package main

import (
	"github.com/xuopoj/sd-helper/cmd"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	cmd.Execute(version, commit, date)
}
