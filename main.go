package main

import "AttendanceBot/cmd"

func main() {
	cmd.Execute()
}
