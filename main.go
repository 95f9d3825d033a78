package main

import "github.com/KaramelBytes/habitloom-cli/cmd"

func main() {
	cmd.Execute()
}
