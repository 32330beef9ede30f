package consts

import "strings"

// Set through -ldflags "-X .../consts.devmode=true"
var devmode string = "false"

// Version and GitCommit are stamped at build time
var (
	Version   = "development"
	GitCommit = "unknown"
)

func IsDevMode() bool {
	return strings.ToLower(devmode) == "true"
}
