package protocol

// Frame delimiters and size limits of the binary command protocol.
const (
	PacketBegin = 0x49 // frame start marker
	PacketEnd   = 0x4D // frame end marker

	MaxBodyRx = 73 // max inbound frame body size
	MaxBodyTx = 31 // max outbound frame body size

	BroadcastAddr = 255 // broadcast device address, also the wildcard target

	// rx buffer fits begin + addr + len + body + checksum + end
	rxBufferSize = 5 + MaxBodyRx
)

// Command bytes.
const (
	CmdSensorData     = 0x11 // periodic sensor data report
	CmdSetParams      = 0x12 // parameter block (thresholds, filters, rate, tag)
	CmdWakeup         = 0x03 // wake sensor
	CmdEnableAutoSend = 0x19 // enable active data reporting
)

// Subscribe tag bits, in payload order.
const (
	TagAccel       = 0x0001 // acceleration without gravity
	TagAccelGrav   = 0x0002 // acceleration with gravity
	TagAngleSpeed  = 0x0004 // angular rate
	TagMag         = 0x0008 // magnetic field
	TagEnvironment = 0x0010 // temperature, air pressure, height
	TagQuaternion  = 0x0020 // orientation quaternion
	TagEuler       = 0x0040 // euler angles
)

// Fixed-point scale factors converting raw signed samples to physical units.
const (
	ScaleAccel       = 0.00478515625     // m/s²
	ScaleQuat        = 0.000030517578125 //
	ScaleAngle       = 0.0054931640625   // deg
	ScaleAngleSpeed  = 0.06103515625     // deg/s
	ScaleMag         = 0.15106201171875  // µT
	ScaleTemperature = 0.01              // °C
	ScaleAirPressure = 0.0002384185791   // hPa
	ScaleHeight      = 0.0010728836      // m
)

func u16(p []byte) uint16 {
	return (uint16(p[1]) << 8) | uint16(p[0])
}

func u32(p []byte) uint32 {
	return (uint32(p[3]) << 24) | (uint32(p[2]) << 16) | (uint32(p[1]) << 8) | uint32(p[0])
}

func i16(p []byte) int16 {
	return int16((uint16(p[1]) << 8) | uint16(p[0]))
}

// i24 reads a little-endian 24-bit signed value, sign-extended from bit 23.
func i24(p []byte) int32 {
	v := (uint32(p[2]) << 16) | (uint32(p[1]) << 8) | uint32(p[0])
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}
