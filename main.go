package main

import "swarm-backend/cmd"

func main() {
	cmd.Run()
}
