package main

import (
	"fmt"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Jetson999/imu-reader-go/internal/app"
	"github.com/Jetson999/imu-reader-go/internal/config"
	"github.com/Jetson999/imu-reader-go/internal/protocol"
	"github.com/Jetson999/imu-reader-go/internal/reader"
	"github.com/Jetson999/imu-reader-go/internal/stats"
)

var defaultTableValue = [][]string{{"Channel", "X", "Y", "Z", "W"}}

func getTable() *widgets.Table {
	table := widgets.NewTable()
	table.Rows = defaultTableValue
	table.ColumnWidths = []int{16, 14, 14, 14, 14}
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.TextAlignment = ui.AlignRight
	table.SetRect(0, 0, 80, 24)
	return table
}

func fmtF(v float32) string {
	return fmt.Sprintf("%.3f", v)
}

func rows(s *protocol.Sample, hz float64, connected bool) [][]string {
	r := [][]string{defaultTableValue[0]}
	r = append(r, []string{"accel m/s²", fmtF(s.Accel[0]), fmtF(s.Accel[1]), fmtF(s.Accel[2]), ""})
	r = append(r, []string{"accel+g m/s²", fmtF(s.AccelGrav[0]), fmtF(s.AccelGrav[1]), fmtF(s.AccelGrav[2]), ""})
	r = append(r, []string{"gyro dps", fmtF(s.Gyro[0]), fmtF(s.Gyro[1]), fmtF(s.Gyro[2]), ""})
	r = append(r, []string{"mag µT", fmtF(s.Mag[0]), fmtF(s.Mag[1]), fmtF(s.Mag[2]), ""})
	r = append(r, []string{"euler deg", fmtF(s.Euler[0]), fmtF(s.Euler[1]), fmtF(s.Euler[2]), ""})
	r = append(r, []string{"quat", fmtF(s.Quat[1]), fmtF(s.Quat[2]), fmtF(s.Quat[3]), fmtF(s.Quat[0])})
	r = append(r, []string{"env", fmtF(s.Temperature) + " °C", fmtF(s.Pressure) + " hPa", fmtF(s.Height) + " m", ""})
	status := "disconnected"
	if connected {
		status = "connected"
	}
	r = append(r, []string{"link", status, fmt.Sprintf("%.1f Hz", hz), fmt.Sprintf("t=%d ms", s.Timestamp), ""})
	return r
}

func updateValue(opt *config.ReaderOpt, table *widgets.Table) {
	r := reader.New(opt)
	rate := stats.NewRateCounter(time.Second)

	var mu sync.Mutex
	var latest protocol.Sample
	r.OnSample(func(s protocol.Sample) {
		mu.Lock()
		rate.Tick()
		latest = s
		mu.Unlock()
	})

	if err := r.Start(); err != nil {
		log.Panicln(err)
	}

	for {
		mu.Lock()
		s := latest
		hz := rate.Hz()
		mu.Unlock()
		table.Rows = rows(&s, hz, r.Connected())
		ui.Render(table)
		time.Sleep(time.Millisecond * 50)
	}
}

func _main(cmd *cobra.Command, args []string) {
	log.Info("starting")
	if err := ui.Init(); err != nil {
		log.Fatalf("failed to initialize termui: %v", err)
	}
	defer ui.Close()

	t := getTable()
	opt := app.NewMainApp(cmd, args).PrepareRun().GetOpt()
	go updateValue(opt, t)

	uiEvents := ui.PollEvents()
	for {
		e := <-uiEvents
		switch e.ID {
		case "q", "<C-c>":
			return
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "imu_monitor",
	Short: "live terminal view of decoded IMU channels",
	Long:  "live terminal view of decoded IMU channels",
	Run: func(cmd *cobra.Command, args []string) {
		_main(cmd, args)
	},
}

func main() {
	rootCmd.Flags().String("config", "", "default configuration path")
	rootCmd.Flags().StringP("port", "p", config.DefaultPort, "serial port the IMU is attached to")
	rootCmd.Flags().IntP("baud", "b", config.DefaultBaud, "serial baud rate")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")

	err := rootCmd.Execute()
	if err != nil {
		return
	}
}
