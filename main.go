package main

import "github.com/andreagilardoni/ArduinoStorage/cmd"

func main() {
	cmd.Execute()
}
