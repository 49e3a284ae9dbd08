package main

import "github.com/iota-uz/admin-portal/pkg/commands"

func main() {
	commands.Execute()
}
