package main

import "github.com/derickschaefer/aasun/cmd"

func main() {
	cmd.Execute()
}
