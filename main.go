package main

import "kazi/cmd"

func main() {
	cmd.Execute()
}
