package reader

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/Jetson999/imu-reader-go/internal/config"
)

// devicePathExists checks whether the configured port is physically present.
// Non-path names (COM ports) cannot be stat'ed and are assumed present.
func devicePathExists(port string) bool {
	if !strings.HasPrefix(port, "/") {
		return true
	}
	_, err := os.Stat(port)
	return err == nil
}

// listSerialPorts lists candidate serial ports depending on the platform.
func listSerialPorts() []string {
	var ports []string
	switch runtime.GOOS {
	case "windows":
		for i := 1; i <= 256; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
	case "linux":
		// USB-serial adapters show up as /dev/ttyUSB* or /dev/ttyACM*
		files, err := os.ReadDir("/dev")
		if err != nil {
			log.Errorln("error reading /dev:", err)
		}
		for _, file := range files {
			name := file.Name()
			if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
				ports = append(ports, "/dev/"+name)
			}
		}
	case "darwin":
		files, err := os.ReadDir("/dev")
		if err != nil {
			log.Fatal(err)
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if strings.HasPrefix(name, "tty.") {
				ports = append(ports, "/dev/"+name)
			}
		}
	default:
		log.Fatalf("unsupported platform: %s", runtime.GOOS)
	}
	return ports
}

func testPort(portName string, baud int) bool {
	c := &serial.Config{Name: portName, Baud: baud, ReadTimeout: time.Second * 2}
	s, err := serial.OpenPort(c)
	if err != nil {
		return false
	}
	defer func() { _ = s.Close() }()

	time.Sleep(time.Millisecond * 100)

	buffer := make([]byte, 512)
	n, _ := s.Read(buffer)
	return n > 0
}

// ProbeDev scans candidate serial ports for ones that are streaming data.
func ProbeDev(opt config.SerialOpt) ([]string, error) {
	ports := listSerialPorts()
	var validPorts []string

	for _, portName := range ports {
		if testPort(portName, opt.Baud) {
			validPorts = append(validPorts, portName)
		}
	}

	if len(validPorts) == 0 {
		return nil, errors.New("no valid ports found")
	}
	return validPorts, nil
}
