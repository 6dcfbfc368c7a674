// Command zonectl runs parcel analyses, regulation ingestion and event
// tailing from the terminal against the same stack as the REST server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
