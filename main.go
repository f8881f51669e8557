package main

import "photoduel-backend/cmd"

func main() {
	cmd.Run()
}
