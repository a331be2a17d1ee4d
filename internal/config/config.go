package config

import (
	"bufio"
	"errors"
	"fmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"strings"

	"github.com/Jetson999/imu-reader-go/internal/utils"
)

const DefaultAppName = "imureader"
const DefaultConfigName = "config"

const (
	DefaultPort      = "/dev/ttyUSB0"
	DefaultBaud      = 115200
	DefaultTimeoutMs = 1000

	DefaultDeviceAddress   = 255
	DefaultReportRate      = 60
	DefaultSubscribeTag    = 0x7F
	DefaultBarometerFilter = 2
	DefaultGyroFilter      = 1
	DefaultAccFilter       = 3
	DefaultCompassFilter   = 5

	DefaultCheckIntervalMs     = 1000
	DefaultReconnectIntervalMs = 2000
	DefaultMaxReconnect        = 0
)

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config/"+DefaultAppName+"/"+DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

type SerialOpt struct {
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type IMUOpt struct {
	DeviceAddress   uint8  `yaml:"device_address"`
	ReportRate      uint8  `yaml:"report_rate"`
	SubscribeTag    uint16 `yaml:"subscribe_tag"`
	CompassOn       bool   `yaml:"compass_on"`
	BarometerFilter uint8  `yaml:"barometer_filter"`
	GyroFilter      uint8  `yaml:"gyro_filter"`
	AccFilter       uint8  `yaml:"acc_filter"`
	CompassFilter   uint8  `yaml:"compass_filter"`
}

type HotplugOpt struct {
	CheckIntervalMs     int `yaml:"check_interval_ms"`
	ReconnectIntervalMs int `yaml:"reconnect_interval_ms"`
	MaxReconnect        int `yaml:"max_reconnect"`
}

type ReaderOpt struct {
	Serial  SerialOpt  `yaml:"serial"`
	IMU     IMUOpt     `yaml:"imu"`
	Hotplug HotplugOpt `yaml:"hotplug"`
	Debug   bool       `yaml:"debug"`
}

type ReaderDesc struct {
	Opt   ReaderOpt
	Viper *viper.Viper
}

func NewReaderDesc() ReaderDesc {
	return ReaderDesc{
		Opt:   NewReaderOpt(),
		Viper: nil,
	}
}

func NewReaderOpt() ReaderOpt {
	return ReaderOpt{
		Serial: SerialOpt{
			Port:      DefaultPort,
			Baud:      DefaultBaud,
			TimeoutMs: DefaultTimeoutMs,
		},
		IMU: IMUOpt{
			DeviceAddress:   DefaultDeviceAddress,
			ReportRate:      DefaultReportRate,
			SubscribeTag:    DefaultSubscribeTag,
			CompassOn:       false,
			BarometerFilter: DefaultBarometerFilter,
			GyroFilter:      DefaultGyroFilter,
			AccFilter:       DefaultAccFilter,
			CompassFilter:   DefaultCompassFilter,
		},
		Hotplug: HotplugOpt{
			CheckIntervalMs:     DefaultCheckIntervalMs,
			ReconnectIntervalMs: DefaultReconnectIntervalMs,
			MaxReconnect:        DefaultMaxReconnect,
		},
		Debug: false,
	}
}

func (o *ReaderDesc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	vipCfg.SetDefault("serial.port", DefaultPort)
	vipCfg.SetDefault("serial.baud", DefaultBaud)
	vipCfg.SetDefault("serial.timeout_ms", DefaultTimeoutMs)
	vipCfg.SetDefault("imu.device_address", DefaultDeviceAddress)
	vipCfg.SetDefault("imu.report_rate", DefaultReportRate)
	vipCfg.SetDefault("imu.subscribe_tag", DefaultSubscribeTag)
	vipCfg.SetDefault("imu.compass_on", false)
	vipCfg.SetDefault("imu.barometer_filter", DefaultBarometerFilter)
	vipCfg.SetDefault("imu.gyro_filter", DefaultGyroFilter)
	vipCfg.SetDefault("imu.acc_filter", DefaultAccFilter)
	vipCfg.SetDefault("imu.compass_filter", DefaultCompassFilter)
	vipCfg.SetDefault("hotplug.check_interval_ms", DefaultCheckIntervalMs)
	vipCfg.SetDefault("hotplug.reconnect_interval_ms", DefaultReconnectIntervalMs)
	vipCfg.SetDefault("hotplug.max_reconnect", DefaultMaxReconnect)
	vipCfg.SetDefault("debug", false)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv("IMUREADER_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
		}
	}
	vipCfg.WatchConfig()

	vipCfg.SetEnvPrefix(DefaultAppName)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	_ = vipCfg.BindPFlag("serial.port", cmd.Flags().Lookup("port"))
	_ = vipCfg.BindPFlag("serial.baud", cmd.Flags().Lookup("baud"))
	_ = vipCfg.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		log.Warnln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		log.Fatalln("failed to unmarshal config")
		os.Exit(1)
	}

	o.Viper = vipCfg
	return nil
}

func (o *ReaderDesc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func (o *ReaderDesc) SaveConfig() error {
	if o.Viper == nil {
		return errors.New("viper is nil")
	}
	f, err := os.OpenFile(o.Viper.ConfigFileUsed(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	defer func() { _ = f.Close() }()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	s, _ := yaml.Marshal(o.Opt)
	_, err = w.Write(s)
	if err != nil {
		return err
	}
	_ = w.Flush()
	return nil
}

// InitCfg prepares a configuration template for the application
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewReaderDesc()
	err := desc.Parse(cmd)
	if err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		fmt.Println(string(configBuffer))
	} else {
		utils.DumpOption(desc.Opt, outputPath, overwriteFlag)
	}
	return nil
}
