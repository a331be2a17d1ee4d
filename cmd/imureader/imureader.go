package main

import (
	"github.com/Jetson999/imu-reader-go/internal/cmd"
)

func main() {
	cmd.Execute()
}
