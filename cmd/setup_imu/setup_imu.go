package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tarm/serial"

	"github.com/Jetson999/imu-reader-go/internal/protocol"
)

var logger = log.New(os.Stdout, "setup_imu ", log.LstdFlags)

// getMsgs builds the command bodies to send, in order.
func getMsgs(cmdHex string, wake bool, report bool) ([][]byte, error) {
	var msgs [][]byte

	if cmdHex != "" {
		body, err := hex.DecodeString(cmdHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --cmd hex: %w", err)
		}
		msgs = append(msgs, body)
	}
	if wake {
		msgs = append(msgs, []byte{protocol.CmdWakeup})
	}
	if report {
		msgs = append(msgs, []byte{protocol.CmdEnableAutoSend})
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("nothing to send")
	}
	return msgs, nil
}

func send(port string, baud int, addr uint, msgs [][]byte) error {
	c := &serial.Config{Name: port, Baud: baud}
	s, err := serial.OpenPort(c)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, msg := range msgs {
		if err := protocol.PackAndSend(msg, uint8(addr), s.Write); err != nil {
			return err
		}
		fmt.Printf("host -> % X\n", msg)
		time.Sleep(200 * time.Millisecond)
	}

	return nil
}

func main() {
	portFlag := flag.String("port", "", "The serial port to use")
	baudFlag := flag.Int("baud", 115200, "Baud rate")
	addrFlag := flag.Uint("addr", 255, "Device address")
	cmdFlag := flag.String("cmd", "", "Raw command body as hex, first byte is the command")
	wakeFlag := flag.Bool("wake", false, "Send the wake command")
	reportFlag := flag.Bool("report", false, "Send the enable-auto-report command")

	flag.Parse()

	if *portFlag == "" {
		logger.Fatal("--port must be specified")
	}

	msgs, err := getMsgs(*cmdFlag, *wakeFlag, *reportFlag)
	if err != nil {
		logger.Fatal(err)
	}

	if err := send(*portFlag, *baudFlag, *addrFlag, msgs); err != nil {
		logger.Fatal(err)
	}
}
