package cli

import (
	colorable "github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
)

// useConsoleOutput switches logging to colored console output for
// interactive commands.
func useConsoleOutput(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStdout())
}
