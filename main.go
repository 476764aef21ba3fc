// The main package for the bookscraper executable.
package main

import "github.com/shelfscout/bookscraper/cmd"

func main() {
	cmd.Execute()
}
