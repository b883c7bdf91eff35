package irq

import "github.com/sirupsen/logrus"

// Log is the package-wide trace sink. It defaults to logrus's standard
// logger at Info level, matching the teacher's "optional log/puts sink;
// the core must function without it" (spec §6) — embedders that want
// silence can set Log to a logger with output discarded, and embedders
// targeting bare metal can swap in any logrus.FieldLogger-compatible
// shim over a UART.
var Log logrus.FieldLogger = logrus.StandardLogger()
