package protocol

// Sample holds one decoded sensor report in engineering units. Fields not
// selected by Tag keep their zero value and must not be read as measured.
type Sample struct {
	Accel     [3]float32 // m/s², gravity removed
	AccelGrav [3]float32 // m/s², gravity included
	Gyro      [3]float32 // deg/s
	Mag       [3]float32 // µT

	Temperature float32 // °C
	Pressure    float32 // hPa
	Height      float32 // m

	Quat  [4]float32 // w, x, y, z
	Euler [3]float32 // deg

	Timestamp uint32 // device milliseconds
	Tag       uint16 // subscribe tag of this report
}

// Has reports whether the channel group selected by bit was present.
func (s *Sample) Has(bit uint16) bool {
	return s.Tag&bit != 0
}
