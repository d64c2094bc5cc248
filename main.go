package main

import "github.com/sqlseq/sqlseq/cmd"

func main() {
	cmd.Execute()
}
