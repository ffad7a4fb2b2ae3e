package main

import "github.com/manifd/manifd/cmd/manifd/cmd"

func main() {
	cmd.Execute()
}
