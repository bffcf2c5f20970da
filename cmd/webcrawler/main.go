package main

import "github.com/JakeFAU/webcrawlerapi-go/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
