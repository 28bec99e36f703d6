package main

import "github.com/example/estate-crm/cmd"

func main() {
	cmd.Execute()
}
