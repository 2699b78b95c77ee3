/*
simple-battery-voltage-alarm - alarm on battery voltage going out of range.
Copyright (C) 2025, wuwbobo2021

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/config"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/input"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/powersupply"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/report"
)

const readingsCSVFile = "battery-readings.csv"

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	ConfigDir   string `arg:"-c,--config" help:"configuration directory"`
	Reconfigure bool   `arg:"-r,--reconfigure" help:"run the setup dialogue even if a configuration exists"`
	SaveLog     bool   `arg:"-l,--save-log" help:"save per-session log files from startup"`
	LogLevel    string `arg:"--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{
		ConfigDir: config.DefaultDir(),
	}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("[%s] %s\n", strings.ToUpper(entry.Level.String()), entry.Message)), nil
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	log.SetFormatter(new(customFormatter))
	args := procArgs()
	setLogLevel(args.LogLevel)

	log.Info("Running version: ", version)

	confPath := filepath.Join(args.ConfigDir, config.FileName)
	conf, err := config.Load(confPath)
	if err != nil && !os.IsNotExist(err) {
		log.Warn("Error loading config, running setup: ", err)
	}
	if err != nil || args.Reconfigure {
		conf, err = runSetup(confPath)
		if err != nil {
			return err
		}
	} else {
		fmt.Println(conf.String())
		fmt.Println("Run with --reconfigure to change these settings.")
	}

	mode := conf.Mode()
	source, err := powersupply.Discover(powersupply.DefaultRoot, mode, conf.InternalResistance)
	if err != nil {
		return err
	}
	log.Info("Monitoring power supply: ", source.Device())
	if tech := source.Technology(); tech != "" {
		log.Info("Battery technology: ", tech)
	}

	eval := alarm.Evaluator{
		Mode: mode,
		Thresholds: alarm.Thresholds{
			MinVoltage: conf.MinVoltage,
			MaxVoltage: conf.MaxVoltage,
			MaxPower:   conf.MaxPower,
		},
		Limits: alarm.Limits{MaxVoltageDesign: source.MaxVoltageDesign()},
	}

	flags := new(alarm.Flags)
	flags.SaveLog.Store(args.SaveLog)

	sinks := []alarm.Sink{&report.Console{Out: os.Stdout}}
	if conf.LogDir != "" {
		if err := os.MkdirAll(conf.LogDir, 0755); err != nil {
			return err
		}
		sinks = append(sinks, &report.SessionLogger{Dir: conf.LogDir, Flags: flags, Log: log})
		csvSink, err := report.NewReadingsLog(filepath.Join(conf.LogDir, readingsCSVFile), log)
		if err != nil {
			return err
		}
		sinks = append(sinks, csvSink)
	}
	if conf.InfluxDB.Address != "" {
		influx, err := report.OpenInflux(
			conf.InfluxDB.Address, conf.InfluxDB.Username,
			conf.InfluxDB.Password, conf.InfluxDB.Database, log)
		if err != nil {
			log.Error("Error connecting to InfluxDB, continuing without it: ", err)
		} else {
			defer influx.Close()
			sinks = append(sinks, influx)
		}
	}

	var notifier alarm.Notifier
	if conf.Pushover.Token != "" && conf.Pushover.User != "" {
		notifier = report.NewPushoverNotifier(conf.Pushover.Token, conf.Pushover.User, log)
	}

	go func() {
		if err := config.Watch(confPath, conf, log); err != nil {
			log.Error("Error watching config file: ", err)
		}
	}()
	go input.Listen(os.Stdin, mode == alarm.ModeManualSwitch, flags, log)

	fmt.Println("Commands: 'e' exit, 'l' toggle session log files" + inputHint(mode))

	monitor := &alarm.Monitor{
		Source:   source,
		Eval:     eval,
		Acc:      alarm.NewAccumulator(mode, alarm.PollInterval),
		Flags:    flags,
		Sinks:    sinks,
		Notifier: notifier,
		Interval: alarm.PollInterval,
		Bell:     os.Stdout,
	}
	return monitor.Run()
}

func inputHint(mode alarm.Mode) string {
	if mode == alarm.ModeManualSwitch {
		return ", 'c' mark charging, 'd' mark discharging"
	}
	return ""
}
