// Command server runs the trip-assignment API.
//
//	server serve     # default: HTTP API
//	server migrate   # apply the embedded schema
package main

import (
	"os"

	"github.com/shiva/tripmatch/pkg/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.New("main")
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}
