package main

import "autobulk/internal/ctl"

// set at build time
var version = "dev"

func main() {
	ctl.Execute(version)
}
