package reader

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Jetson999/imu-reader-go/internal/config"
	"github.com/Jetson999/imu-reader-go/internal/protocol"
)

const (
	disconnectedSleep = 100 * time.Millisecond
	emptyReadSleep    = time.Millisecond
	commandSettle     = 200 * time.Millisecond
	pathWaitCeiling   = 5 * time.Second
	pathWaitPoll      = 100 * time.Millisecond
)

var ErrNotConnected = errors.New("serial port not connected")

// SampleFunc receives one decoded sensor report. It is invoked from the
// acquisition goroutine with no lock held; blocking here stalls reception.
type SampleFunc func(protocol.Sample)

// Reader owns a serial port and a frame decoder, streams decoded samples to
// a callback, and survives physical unplug/replug of the device.
type Reader struct {
	opt *config.ReaderOpt
	dec *protocol.Decoder

	onSample SampleFunc

	mu        sync.Mutex // guards port and connected
	port      transport
	connected bool

	decMu sync.Mutex // serializes decoder Feed against the hotplug Reset

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	reconnects int // touched only by the hotplug goroutine and Start

	// test seams, production defaults set in New
	openPort   func(config.SerialOpt) (transport, error)
	pathExists func(string) bool
}

func New(opt *config.ReaderOpt) *Reader {
	return &Reader{
		opt:        opt,
		dec:        protocol.NewDecoder(opt.IMU.DeviceAddress),
		openPort:   openSerialPort,
		pathExists: devicePathExists,
	}
}

// OnSample registers the sample callback. Must be called before Start.
func (r *Reader) OnSample(fn SampleFunc) {
	r.onSample = fn
}

func (r *Reader) Running() bool {
	return r.running.Load()
}

func (r *Reader) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Start opens the port, pushes the device configuration and launches the
// acquisition and hotplug goroutines.
func (r *Reader) Start() error {
	if r.running.Load() {
		return nil
	}

	if err := r.openSerial(); err != nil {
		return err
	}
	if err := r.configureSequence(); err != nil {
		r.closeSerial()
		return err
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.reconnects = 0
	r.running.Store(true)

	r.wg.Add(2)
	go r.readLoop()
	go r.hotplugLoop()

	log.Infof("reader started on %s @ %d baud", r.opt.Serial.Port, r.opt.Serial.Baud)
	return nil
}

// Stop signals both goroutines, waits for them and closes the port.
func (r *Reader) Stop() {
	if !r.running.Swap(false) {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.closeSerial()
	log.Infoln("reader stopped")
}

// SendCommand frames body and writes it to the device. body[0] is the
// command byte. Used for one-off commands beyond the standard sequence.
func (r *Reader) SendCommand(body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected || r.port == nil {
		return ErrNotConnected
	}
	return protocol.PackAndSend(body, r.opt.IMU.DeviceAddress, r.port.Write)
}

// configureSequence replays the device configuration: parameter block,
// wake, enable auto-report. The settle delays let the sensor apply each
// step before it starts streaming.
func (r *Reader) configureSequence() error {
	if err := r.configure(); err != nil {
		return err
	}
	time.Sleep(commandSettle)
	if err := r.wakeup(); err != nil {
		return err
	}
	time.Sleep(commandSettle)
	return r.enableAutoReport()
}

func (r *Reader) configure() error {
	imu := &r.opt.IMU
	params := []byte{
		protocol.CmdSetParams,
		5,   // stationary acceleration threshold
		255, // static zeroing speed
		0,   // dynamic zeroing speed
		0,   // filter/compass byte, filled below
		imu.ReportRate,
		imu.GyroFilter,
		imu.AccFilter,
		imu.CompassFilter,
		byte(imu.SubscribeTag),
		byte(imu.SubscribeTag >> 8),
	}
	params[4] = (imu.BarometerFilter & 3) << 1
	if imu.CompassOn {
		params[4] |= 1
	}
	return r.SendCommand(params)
}

func (r *Reader) wakeup() error {
	return r.SendCommand([]byte{protocol.CmdWakeup})
}

func (r *Reader) enableAutoReport() error {
	return r.SendCommand([]byte{protocol.CmdEnableAutoSend})
}

func (r *Reader) openSerial() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		_ = r.port.Close()
		r.port = nil
	}

	port, err := r.openPort(r.opt.Serial)
	if err != nil {
		r.connected = false
		log.Warnln("open serial failed:", err)
		return err
	}
	_ = port.Flush()
	r.port = port
	r.connected = true
	log.Infoln("serial port opened:", r.opt.Serial.Port)
	return nil
}

func (r *Reader) closeSerial() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		_ = r.port.Close()
		r.port = nil
	}
	r.connected = false
}

// readLoop pulls bytes from the port and feeds them to the decoder. The
// lock is held only for the read itself; decode and callback run outside it.
func (r *Reader) readLoop() {
	defer r.wg.Done()

	buf := make([]byte, 64)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		r.mu.Lock()
		if !r.connected || r.port == nil {
			r.mu.Unlock()
			r.sleep(disconnectedSleep)
			continue
		}
		// a timed-out read comes back as (0, nil) or, through os.File on
		// linux, as (0, io.EOF); only other errors mean the link dropped
		n, err := r.port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			r.connected = false
			r.mu.Unlock()
			log.Warnln("serial read error:", err)
			r.sleep(disconnectedSleep)
			continue
		}
		r.mu.Unlock()

		if n == 0 {
			// nothing on the wire
			r.sleep(emptyReadSleep)
			continue
		}

		for i := 0; i < n; i++ {
			r.decMu.Lock()
			body, ok := r.dec.Feed(buf[i])
			var sample protocol.Sample
			if ok {
				sample, ok = protocol.DecodeSample(body)
			}
			r.decMu.Unlock()

			// callback runs with no lock held
			if ok && r.onSample != nil {
				r.onSample(sample)
			}
		}
	}
}

// hotplugLoop watches the device path and the connection state, and drives
// the reconnect protocol whenever either degrades.
func (r *Reader) hotplugLoop() {
	defer r.wg.Done()

	lastPresent := true
	exhausted := false

	for {
		if !r.sleep(time.Duration(r.opt.Hotplug.CheckIntervalMs) * time.Millisecond) {
			return
		}

		present := r.pathExists(r.opt.Serial.Port)
		if !present {
			if r.Connected() {
				log.Warnln("device path vanished:", r.opt.Serial.Port)
			}
			r.closeSerial()
			lastPresent = false
			continue
		}
		if !lastPresent {
			// device came back, grant a fresh attempt budget
			lastPresent = true
			r.reconnects = 0
			exhausted = false
		}

		if r.Connected() {
			continue
		}

		for r.ctx.Err() == nil {
			if !r.pathExists(r.opt.Serial.Port) {
				// unplugged again mid-retry, wait for it to come back
				break
			}
			if limit := r.opt.Hotplug.MaxReconnect; limit > 0 && r.reconnects >= limit {
				if !exhausted {
					log.Errorf("giving up after %d reconnect attempts", r.reconnects)
					exhausted = true
				}
				break
			}
			if r.reconnect() {
				break
			}
			if !r.sleep(time.Duration(r.opt.Hotplug.ReconnectIntervalMs) * time.Millisecond) {
				return
			}
		}
	}
}

// reconnect performs one attempt: reopen, reset the decoder so no partial
// frame spans the gap, replay the configuration. A configure failure closes
// the port again rather than leaving the device half-configured.
func (r *Reader) reconnect() bool {
	r.closeSerial()
	r.reconnects++
	log.Infof("reconnect attempt %d", r.reconnects)

	if !r.waitForPath() {
		return false
	}
	// reset before the port reopens so the acquisition loop cannot feed
	// fresh bytes into a stale partial frame
	r.decMu.Lock()
	r.dec.Reset()
	r.decMu.Unlock()
	if err := r.openSerial(); err != nil {
		return false
	}

	if err := r.configureSequence(); err != nil {
		log.Warnln("configure after reconnect failed:", err)
		r.closeSerial()
		return false
	}

	r.reconnects = 0
	log.Infoln("reconnected and reconfigured")
	return true
}

// waitForPath polls for the device path with a hard ceiling, abandoning
// this attempt if it does not appear in time.
func (r *Reader) waitForPath() bool {
	deadline := time.Now().Add(pathWaitCeiling)
	for time.Now().Before(deadline) {
		if r.pathExists(r.opt.Serial.Port) {
			return true
		}
		if !r.sleep(pathWaitPoll) {
			return false
		}
	}
	return false
}

// sleep waits d or until shutdown, reporting false on shutdown.
func (r *Reader) sleep(d time.Duration) bool {
	select {
	case <-r.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
