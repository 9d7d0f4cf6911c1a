package main

import "github.com/wordtally/apiserver/cmd"

func main() {
	cmd.Execute()
}
