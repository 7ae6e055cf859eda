package main

import "github.com/nimburion/keyset/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{Name: "keyset"}))
}
