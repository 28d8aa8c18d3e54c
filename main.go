package main

import "github.com/ellavondegurechaff/habitbot/cmd"

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd.Execute(version, commit)
}
