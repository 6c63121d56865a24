package main

import "github.com/studyforge/certrag/cmd"

func main() {
	cmd.Execute()
}
