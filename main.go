package main

import "massa-backend/cmd"

func main() {
	cmd.Execute()
}
