package main

import "github.com/modelboard/webapp/cmd"

func main() {
	cmd.Execute()
}
