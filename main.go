package main

import "github.com/vibast-solutions/ms-go-taskguard/cmd"

func main() {
	cmd.Execute()
}
