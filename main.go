package main

import "family-memory-backend/cmd"

func main() {
	cmd.Run()
}
