package reader

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Jetson999/imu-reader-go/internal/config"
	"github.com/Jetson999/imu-reader-go/internal/protocol"
)

const testDeviceAddr = 5

type fakePort struct {
	mu      sync.Mutex
	rx      []byte
	readErr error
	idleEOF bool
	wr      []byte
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 {
		// read timeout, nothing buffered; linux ports report this as EOF
		if p.idleEOF {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wr = append(p.wr, b...)
	return len(b), nil
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) push(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, b...)
}

func (p *fakePort) failReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *fakePort) timeoutAsEOF() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleEOF = true
}

// commands decodes every frame written to the port into its body bytes.
func (p *fakePort) commands() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := protocol.NewDecoder(testDeviceAddr)
	var out [][]byte
	for _, b := range p.wr {
		if body, ok := d.Feed(b); ok {
			out = append(out, append([]byte(nil), body...))
		}
	}
	return out
}

type harness struct {
	r        *Reader
	opens    atomic.Int32
	openFail atomic.Bool
	present  atomic.Bool

	mu        sync.Mutex
	port      *fakePort
	openTimes []time.Time
}

func (h *harness) current() *fakePort {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.port
}

func (h *harness) openStamps() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Time(nil), h.openTimes...)
}

func testOpt() *config.ReaderOpt {
	opt := config.NewReaderOpt()
	opt.Serial.Port = "/dev/ttyTEST0"
	opt.IMU.DeviceAddress = testDeviceAddr
	opt.Hotplug.CheckIntervalMs = 10
	opt.Hotplug.ReconnectIntervalMs = 20
	return &opt
}

func newHarness(opt *config.ReaderOpt) *harness {
	h := &harness{r: New(opt)}
	h.present.Store(true)
	h.r.openPort = func(config.SerialOpt) (transport, error) {
		h.opens.Add(1)
		h.mu.Lock()
		h.openTimes = append(h.openTimes, time.Now())
		h.mu.Unlock()
		if h.openFail.Load() {
			return nil, errors.New("device absent")
		}
		p := &fakePort{}
		h.mu.Lock()
		h.port = p
		h.mu.Unlock()
		return p, nil
	}
	h.r.pathExists = func(string) bool { return h.present.Load() }
	return h
}

func sensorFrame(t *testing.T, tag uint16, timestamp uint32, vals ...int16) []byte {
	body := []byte{
		protocol.CmdSensorData,
		byte(tag), byte(tag >> 8),
		byte(timestamp), byte(timestamp >> 8), byte(timestamp >> 16), byte(timestamp >> 24),
	}
	for _, v := range vals {
		body = append(body, byte(uint16(v)), byte(uint16(v)>>8))
	}
	buf, err := protocol.Pack(body, testDeviceAddr)
	require.NoError(t, err)
	return buf
}

func TestStartSendsConfigurationSequence(t *testing.T) {
	h := newHarness(testOpt())
	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	require.True(t, h.r.Running())
	require.True(t, h.r.Connected())

	cmds := h.current().commands()
	require.Len(t, cmds, 3)
	require.Equal(t, []byte{
		protocol.CmdSetParams,
		5, 255, 0,
		4, // barometer filter 2, compass off
		config.DefaultReportRate,
		config.DefaultGyroFilter,
		config.DefaultAccFilter,
		config.DefaultCompassFilter,
		0x7F, 0x00,
	}, cmds[0])
	require.Equal(t, []byte{protocol.CmdWakeup}, cmds[1])
	require.Equal(t, []byte{protocol.CmdEnableAutoSend}, cmds[2])
}

func TestStartFailsWhenPortCannotOpen(t *testing.T) {
	h := newHarness(testOpt())
	h.openFail.Store(true)

	require.Error(t, h.r.Start())
	require.False(t, h.r.Running())
	require.False(t, h.r.Connected())
}

func TestSamplesDeliveredInOrder(t *testing.T) {
	h := newHarness(testOpt())

	got := make(chan protocol.Sample, 16)
	h.r.OnSample(func(s protocol.Sample) { got <- s })

	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	stream := sensorFrame(t, protocol.TagAccelGrav, 1, 100, -200, 9800)
	stream = append(stream, sensorFrame(t, protocol.TagAccelGrav, 2, 1, 2, 3)...)
	h.current().push(stream)

	for i, want := range []uint32{1, 2} {
		select {
		case s := <-got:
			require.Equal(t, want, s.Timestamp)
			require.True(t, s.Has(protocol.TagAccelGrav))
			if i == 0 {
				require.InDelta(t, 100*protocol.ScaleAccel, s.AccelGrav[0], 1e-4)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sample")
		}
	}
}

func TestIdleEOFReadsKeepConnection(t *testing.T) {
	h := newHarness(testOpt())

	got := make(chan protocol.Sample, 16)
	h.r.OnSample(func(s protocol.Sample) { got <- s })

	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	// quiet wire: every read times out as (0, io.EOF) the way the linux
	// port surfaces it
	h.current().timeoutAsEOF()

	time.Sleep(500 * time.Millisecond)
	require.Equal(t, int32(1), h.opens.Load(), "idle link must not be reopened")
	require.True(t, h.r.Connected())

	// the link is still live
	h.current().push(sensorFrame(t, protocol.TagAccelGrav, 9, 1, 2, 3))
	select {
	case s := <-got:
		require.Equal(t, uint32(9), s.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample after idle period")
	}
}

func TestReadErrorTriggersReconnectAndReconfigure(t *testing.T) {
	h := newHarness(testOpt())
	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	first := h.current()
	first.failReads(errors.New("device yanked"))

	require.Eventually(t, func() bool {
		return h.opens.Load() >= 2 && h.r.Connected()
	}, 5*time.Second, 10*time.Millisecond, "reader did not reconnect")

	second := h.current()
	require.NotSame(t, first, second)
	require.Eventually(t, func() bool {
		return len(second.commands()) == 3
	}, 2*time.Second, 10*time.Millisecond, "configuration not replayed after reconnect")

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	require.True(t, closed, "stale handle must be closed")
}

func TestNoReconnectWhileDevicePathAbsent(t *testing.T) {
	h := newHarness(testOpt())
	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	h.present.Store(false)
	h.current().failReads(errors.New("device yanked"))

	require.Eventually(t, func() bool {
		return !h.r.Connected()
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(1), h.opens.Load(), "must not attempt opens while the path is absent")

	h.present.Store(true)
	require.Eventually(t, func() bool {
		return h.r.Connected()
	}, 5*time.Second, 10*time.Millisecond, "reader did not recover once the path reappeared")
}

func TestMaxReconnectExhaustionAndPathToggleReset(t *testing.T) {
	opt := testOpt()
	opt.Hotplug.MaxReconnect = 2
	h := newHarness(opt)
	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	h.openFail.Store(true)
	h.current().failReads(errors.New("device yanked"))

	// one open at start plus exactly two failed attempts
	require.Eventually(t, func() bool {
		return h.opens.Load() == 3
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(3), h.opens.Load(), "attempts must stop once the budget is spent")

	// device path toggling absent then present grants a fresh budget
	h.present.Store(false)
	time.Sleep(100 * time.Millisecond)
	h.openFail.Store(false)
	h.present.Store(true)

	require.Eventually(t, func() bool {
		return h.r.Connected()
	}, 5*time.Second, 10*time.Millisecond, "path toggle did not reset the attempt counter")
}

func TestReconnectAttemptsSpacedByInterval(t *testing.T) {
	h := newHarness(testOpt())
	require.NoError(t, h.r.Start())
	defer h.r.Stop()

	h.openFail.Store(true)
	h.current().failReads(errors.New("device yanked"))

	require.Eventually(t, func() bool {
		return h.opens.Load() >= 5
	}, 5*time.Second, 10*time.Millisecond, "expected a run of failed attempts")
	h.r.Stop()

	interval := time.Duration(h.r.opt.Hotplug.ReconnectIntervalMs) * time.Millisecond
	stamps := h.openStamps()
	// stamps[0] is the open at Start, stamps[1] the first retry; every
	// retry after a failure must wait out the reconnect interval
	for i := 2; i < len(stamps); i++ {
		require.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), interval,
			"retry %d fired before the reconnect interval elapsed", i)
	}
}

func TestSendCommandRequiresConnection(t *testing.T) {
	h := newHarness(testOpt())
	require.ErrorIs(t, h.r.SendCommand([]byte{protocol.CmdWakeup}), ErrNotConnected)

	require.NoError(t, h.r.Start())
	defer h.r.Stop()
	require.NoError(t, h.r.SendCommand([]byte{protocol.CmdWakeup}))
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(testOpt())
	require.NoError(t, h.r.Start())

	h.r.Stop()
	require.False(t, h.r.Running())
	h.r.Stop()

	p := h.current()
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	require.True(t, closed)
}
