package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Jetson999/imu-reader-go/internal/config"
	"github.com/Jetson999/imu-reader-go/internal/protocol"
	"github.com/Jetson999/imu-reader-go/internal/reader"
	"github.com/Jetson999/imu-reader-go/internal/stats"
)

type mainApp struct {
	name string
	cmd  *cobra.Command
	args []string
	opt  *config.ReaderOpt
}

type MainApp interface {
	Run()
	PrepareRun() MainApp
	GetOpt() *config.ReaderOpt
	ProbeSensor() error
}

func NewMainApp(cmd *cobra.Command, args []string) MainApp {
	return &mainApp{
		cmd:  cmd,
		args: args,
	}
}

func (a *mainApp) GetOpt() *config.ReaderOpt {
	return a.opt
}

func (a *mainApp) PrepareRun() MainApp {
	desc := config.NewReaderDesc()
	err := desc.Parse(a.cmd)
	if err != nil {
		log.Errorln(err)
		os.Exit(1)
		return nil
	}
	desc.PostParse()
	a.opt = &desc.Opt
	a.name = config.DefaultAppName
	return a
}

func (a *mainApp) ProbeSensor() error {
	log.Infoln("probing IMU devices...")
	res, err := reader.ProbeDev(a.opt.Serial)
	if err != nil {
		log.Errorln(err)
		return err
	}
	log.Infof("found %d streaming serial devices:", len(res))
	for _, v := range res {
		fmt.Printf("- %s\n", strings.TrimSpace(v))
	}
	return nil
}

func formatSample(s *protocol.Sample, rate *stats.RateCounter) string {
	var b strings.Builder
	if s.Has(protocol.TagEuler) {
		fmt.Fprintf(&b, "euler: %7.3f %7.3f %7.3f deg", s.Euler[0], s.Euler[1], s.Euler[2])
	}
	if s.Has(protocol.TagAngleSpeed) {
		fmt.Fprintf(&b, " | gyro: %7.3f %7.3f %7.3f dps", s.Gyro[0], s.Gyro[1], s.Gyro[2])
	}
	if s.Has(protocol.TagAccelGrav) {
		fmt.Fprintf(&b, " | accel: %7.3f %7.3f %7.3f m/s²", s.AccelGrav[0], s.AccelGrav[1], s.AccelGrav[2])
	}
	fmt.Fprintf(&b, " | %5.1f Hz", rate.Hz())
	return b.String()
}

// Run starts the reader and prints decoded samples until SIGINT/SIGTERM.
func (a *mainApp) Run() {
	log.Infoln("serial.port:", a.opt.Serial.Port)
	log.Infoln("serial.baud:", a.opt.Serial.Baud)
	log.Infof("imu.device_address: %d", a.opt.IMU.DeviceAddress)
	log.Infof("imu.report_rate: %d Hz", a.opt.IMU.ReportRate)
	log.Infof("imu.subscribe_tag: 0x%04X", a.opt.IMU.SubscribeTag)
	log.Infoln("debug:", a.opt.Debug)

	r := reader.New(a.opt)
	rate := stats.NewRateCounter(time.Second)
	r.OnSample(func(s protocol.Sample) {
		rate.Tick()
		fmt.Printf("\r%s", formatSample(&s, rate))
	})

	if err := r.Start(); err != nil {
		log.Errorln("start failed:", err)
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			fmt.Println()
			log.Infoln("shutting down")
			r.Stop()
			return
		case <-ticker.C:
			if !r.Connected() {
				fmt.Print("\rwaiting for device...")
			}
		}
	}
}
