package reader

import (
	"time"

	"github.com/tarm/serial"

	"github.com/Jetson999/imu-reader-go/internal/config"
)

// transport is the byte-oriented channel the reader drives. *serial.Port
// satisfies it; tests substitute their own. A timed-out Read may return
// (0, nil) or (0, io.EOF) depending on the platform.
type transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

func openSerialPort(opt config.SerialOpt) (transport, error) {
	c := &serial.Config{
		Name:        opt.Port,
		Baud:        opt.Baud,
		ReadTimeout: time.Duration(opt.TimeoutMs) * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return port, nil
}
