package protocol

// preambleSize is the run of zero bytes that precedes every outbound frame,
// giving the sensor's receiver time to settle before the sync pattern.
const preambleSize = 46

// SendFunc transmits raw bytes and reports how many were accepted.
type SendFunc func(p []byte) (int, error)

// Pack builds one outbound frame around body for the device at addr:
// 46-byte zero preamble, 00 FF 00 FF sync pattern, start marker, address,
// length, body, additive checksum over address..body, end marker.
func Pack(body []byte, addr uint8) ([]byte, error) {
	if len(body) == 0 || len(body) > MaxBodyTx {
		return nil, ErrBodySize
	}

	buf := make([]byte, preambleSize+9+len(body))
	buf[preambleSize+1] = 0xFF
	buf[preambleSize+3] = 0xFF

	p := buf[preambleSize+4:]
	p[0] = PacketBegin
	p[1] = addr
	p[2] = byte(len(body))
	copy(p[3:], body)

	var checksum uint8
	for _, b := range p[1 : 3+len(body)] {
		checksum += b
	}
	p[3+len(body)] = checksum
	p[4+len(body)] = PacketEnd

	return buf, nil
}

// PackAndSend builds the frame and hands it to send in one write. A short
// write counts as a failure; retrying is the caller's concern.
func PackAndSend(body []byte, addr uint8, send SendFunc) error {
	buf, err := Pack(body, addr)
	if err != nil {
		return err
	}
	n, err := send(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return nil
}
