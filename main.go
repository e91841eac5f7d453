package main

import "github.com/0w0mewo/localsend-engine/cmd"

func main() {
	cmd.Execute()
}
