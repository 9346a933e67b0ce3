// Command garagectl manages a garage directly on its configured store, without
// going through the HTTP API.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
