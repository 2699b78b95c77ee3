package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/config"
	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/powersupply"
)

// Two samples taken at different load currents give the internal
// resistance: r = (U2 - U1) / (I1 - I2). Currents closer together
// than this make the division meaningless.
const minCurrentDelta = 0.001

// runSetup walks the user through building a configuration, saves it
// and returns it. The resistance measurement needs a readable power
// supply, so discovery happens up front.
func runSetup(confPath string) (config.Config, error) {
	conf := config.Default()
	in := bufio.NewScanner(os.Stdin)

	source, err := powersupply.Discover(powersupply.DefaultRoot, alarm.ModeAutomatic, 0)
	if err != nil {
		return conf, err
	}
	fmt.Println("Found power supply: ", source.Device())
	if tech := source.Technology(); tech != "" {
		fmt.Println("Battery technology: ", tech)
	}
	if max := source.MaxVoltageDesign(); max > 0 {
		fmt.Printf("Design maximum voltage: %.3f V\n", max)
	}

	conf.ManualSwitch = askYesNo(in,
		"Does charging/discharging switch by a manual switch instead of the charger state? [y/N]: ", false)

	for {
		r, err := measureResistance(in, source)
		if err != nil {
			fmt.Println(err.Error())
			fmt.Printf("Keeping internal resistance %.3f ohm.\n", conf.InternalResistance)
			break
		}
		fmt.Printf("Measured internal resistance: %.3f ohm\n", r)
		if askYesNo(in, "Accept this value? [Y/n]: ", true) {
			conf.InternalResistance = r
			break
		}
	}

	conf.MinVoltage = askFloat(in, "Minimum voltage (V)", conf.MinVoltage)
	conf.MaxVoltage = askFloat(in, "Maximum voltage (V)", conf.MaxVoltage)
	conf.MaxPower = askFloat(in, "Maximum power (W)", conf.MaxPower)
	conf.LogDir = askString(in, "Session log directory (empty to disable)", conf.LogDir)

	if err := config.Save(confPath, conf); err != nil {
		return conf, err
	}
	fmt.Println("Configuration saved to ", confPath)
	fmt.Println(conf.String())
	return conf, nil
}

// measureResistance samples voltage and current twice, with the user
// changing the load in between.
func measureResistance(in *bufio.Scanner, source *powersupply.Source) (float64, error) {
	fmt.Println("Measuring internal resistance. Put the battery under a steady load.")
	if !askYesNo(in, "Ready for the first sample? [Y/n]: ", true) {
		return 0, errors.New("measurement skipped")
	}
	r1 := source.Read()
	fmt.Println(r1.Line(false))

	fmt.Println("Now change the load (for example, switch the charger on or off).")
	if !askYesNo(in, "Ready for the second sample? [Y/n]: ", true) {
		return 0, errors.New("measurement skipped")
	}
	r2 := source.Read()
	fmt.Println(r2.Line(false))

	di := r1.Current - r2.Current
	if di < minCurrentDelta && di > -minCurrentDelta {
		return 0, errors.New("current did not change enough between samples")
	}
	r := (r2.Voltage - r1.Voltage) / di
	if r < 0 {
		r = -r
	}
	return r, nil
}

func askYesNo(in *bufio.Scanner, prompt string, def bool) bool {
	fmt.Print(prompt)
	if !in.Scan() {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(in.Text())) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

func askFloat(in *bufio.Scanner, prompt string, def float64) float64 {
	fmt.Printf("%s [%.3f]: ", prompt, def)
	if !in.Scan() {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(in.Text()), 64)
	if err != nil {
		return def
	}
	return v
}

func askString(in *bufio.Scanner, prompt, def string) string {
	fmt.Printf("%s [%s]: ", prompt, def)
	if !in.Scan() {
		return def
	}
	if s := strings.TrimSpace(in.Text()); s != "" {
		return s
	}
	return def
}
