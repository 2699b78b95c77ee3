package config

import (
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/rjeczalik/notify"
	"github.com/sirupsen/logrus"
)

// Watch blocks watching the config file and exits the process when the
// on-disk settings no longer match conf, so a service manager can
// restart the program with them. Run it in its own goroutine.
func Watch(path string, conf Config, log *logrus.Logger) error {
	fsEvents := make(chan notify.EventInfo, 1)
	if err := notify.Watch(path, fsEvents, notify.InCloseWrite, notify.InMovedTo); err != nil {
		return err
	}
	defer notify.Stop(fsEvents)

	for range fsEvents {
		newConf, err := Load(path)
		if err != nil {
			log.Error("Error reloading config: ", err)
			continue
		}
		diff := cmp.Diff(conf, newConf)
		log.Debug("Config diff: ", diff)
		if diff != "" {
			log.Info("Config changed on disk. Exiting to restart with the new settings.")
			os.Exit(0)
		}
		log.Info("No relevant changes detected in config file.")
	}
	return nil
}
