package main

import "spendwise-server/src/cmd"

func main() {
	cmd.Execute()
}
