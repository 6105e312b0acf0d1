package main

import "tip-gate-backend/cmd"

func main() {
	cmd.Execute()
}
