package devices

import "errors"

var errNoDefaultOutput = errors.New("devices: no default output device configured")
