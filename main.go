package main

import "github.com/dakshina99/apimdbctl/cmd"

func main() {
	cmd.Execute()
}
