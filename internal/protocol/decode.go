package protocol

import (
	log "github.com/sirupsen/logrus"
)

// sensorDataPrefix is the fixed part of a 0x11 body: command byte,
// 16-bit subscribe tag and 32-bit timestamp.
const sensorDataPrefix = 7

// DecodeSample decodes one frame body into a Sample. body[0] is the command
// byte; only CmdSensorData produces a sample, any other command is a no-op.
// Channel groups are decoded in fixed tag-bit order; a group promised by the
// tag but truncated by the body length is skipped, the sample is still
// emitted with whatever was read before it.
func DecodeSample(body []byte) (Sample, bool) {
	var s Sample
	if len(body) == 0 {
		return s, false
	}
	if body[0] != CmdSensorData {
		log.Debugf("ignoring command 0x%02X", body[0])
		return s, false
	}
	if len(body) < sensorDataPrefix {
		log.Debugf("sensor report too short: %d bytes", len(body))
		return s, false
	}

	s.Tag = u16(body[1:])
	s.Timestamp = u32(body[3:])

	n := len(body)
	l := sensorDataPrefix

	if s.Tag&TagAccel != 0 && l+6 <= n {
		for i := 0; i < 3; i++ {
			s.Accel[i] = float32(i16(body[l:])) * ScaleAccel
			l += 2
		}
	}

	if s.Tag&TagAccelGrav != 0 && l+6 <= n {
		for i := 0; i < 3; i++ {
			s.AccelGrav[i] = float32(i16(body[l:])) * ScaleAccel
			l += 2
		}
	}

	if s.Tag&TagAngleSpeed != 0 && l+6 <= n {
		for i := 0; i < 3; i++ {
			s.Gyro[i] = float32(i16(body[l:])) * ScaleAngleSpeed
			l += 2
		}
	}

	if s.Tag&TagMag != 0 && l+6 <= n {
		for i := 0; i < 3; i++ {
			s.Mag[i] = float32(i16(body[l:])) * ScaleMag
			l += 2
		}
	}

	if s.Tag&TagEnvironment != 0 && l+8 <= n {
		s.Temperature = float32(i16(body[l:])) * ScaleTemperature
		l += 2
		s.Pressure = float32(i24(body[l:])) * ScaleAirPressure
		l += 3
		s.Height = float32(i24(body[l:])) * ScaleHeight
		l += 3
	}

	if s.Tag&TagQuaternion != 0 && l+8 <= n {
		for i := 0; i < 4; i++ {
			s.Quat[i] = float32(i16(body[l:])) * ScaleQuat
			l += 2
		}
	}

	if s.Tag&TagEuler != 0 && l+6 <= n {
		for i := 0; i < 3; i++ {
			s.Euler[i] = float32(i16(body[l:])) * ScaleAngle
			l += 2
		}
	}

	return s, true
}
