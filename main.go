package main

import "github.com/KaramelBytes/mortality-audit/cmd"

func main() {
	cmd.Execute()
}
