package main

import "github.com/ignacioelizeche/controlid/cmd"

func main() {
	cmd.Execute()
}
