package protocol

import (
	log "github.com/sirupsen/logrus"
)

type rxState int

const (
	rxWaitBegin rxState = iota
	rxAddress
	rxLength
	rxData
	rxChecksum
	rxEnd
)

// Decoder reassembles frames from a raw byte stream, one byte at a time.
// It is not safe for concurrent use; the acquisition loop owns it exclusively.
type Decoder struct {
	state      rxState
	buf        [rxBufferSize]byte
	idx        int
	cmdLen     int
	checksum   uint8
	targetAddr uint8
}

// NewDecoder returns a decoder accepting frames addressed to targetAddr.
// Address 255 accepts frames from any device.
func NewDecoder(targetAddr uint8) *Decoder {
	return &Decoder{targetAddr: targetAddr}
}

// Reset discards any partially assembled frame. Called after the transport
// is reopened so stale bytes never merge with a fresh stream.
func (d *Decoder) Reset() {
	d.state = rxWaitBegin
	d.idx = 0
	d.cmdLen = 0
	d.checksum = 0
}

// Feed consumes one byte. ok is true when a complete, checksum-valid frame
// addressed to the target has been assembled; body then starts at the
// command byte and aliases the internal buffer, valid until the next Feed.
func (d *Decoder) Feed(b byte) (body []byte, ok bool) {
	switch d.state {
	case rxWaitBegin:
		if b == PacketBegin {
			d.idx = 0
			d.buf[d.idx] = b
			d.idx++
			d.checksum = 0
			d.state = rxAddress
		}

	case rxAddress:
		d.buf[d.idx] = b
		d.idx++
		d.checksum += b
		if b == BroadcastAddr {
			// broadcast source address is never valid on the wire
			d.state = rxWaitBegin
		} else {
			d.state = rxLength
		}

	case rxLength:
		d.buf[d.idx] = b
		d.idx++
		d.checksum += b
		if b == 0 || b > MaxBodyRx {
			d.state = rxWaitBegin
		} else {
			d.cmdLen = int(b)
			d.state = rxData
		}

	case rxData:
		d.buf[d.idx] = b
		d.idx++
		d.checksum += b
		if d.idx >= d.cmdLen+3 {
			d.state = rxChecksum
		}

	case rxChecksum:
		if d.checksum == b {
			d.buf[d.idx] = b
			d.idx++
			d.state = rxEnd
		} else {
			log.Debugf("frame checksum mismatch: got=0x%02X want=0x%02X len=%d", b, d.checksum, d.cmdLen)
			d.state = rxWaitBegin
		}

	case rxEnd:
		d.state = rxWaitBegin
		if b != PacketEnd {
			log.Debugf("frame end marker mismatch: got=0x%02X", b)
			break
		}
		d.buf[d.idx] = b
		d.idx++
		addr := d.buf[1]
		if d.targetAddr != BroadcastAddr && d.targetAddr != addr {
			log.Debugf("frame address mismatch: got=%d want=%d", addr, d.targetAddr)
			break
		}
		return d.buf[3 : 3+d.cmdLen], true
	}

	return nil, false
}
