package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var trace = false
var debugInfo = false
var replay = false
var dap = false
var cli = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Trace returns true if the trace reconstructor should log.
func Trace() bool {
	return trace
}

// TraceLogger returns a logger for the trace reconstructor.
func TraceLogger() Logger {
	return makeFlaggableLogger(trace, Fields{"layer": "trace"})
}

// DebugInfo returns true if debug info loading should be logged.
func DebugInfo() bool {
	return debugInfo
}

// DebugInfoLogger returns a logger for the debug info loader.
func DebugInfoLogger() Logger {
	return makeFlaggableLogger(debugInfo, Fields{"layer": "debuginfo"})
}

// Replay returns true if the replay stepper should log every stop.
func Replay() bool {
	return replay
}

// ReplayLogger returns a logger for the replay stepper.
func ReplayLogger() Logger {
	return makeFlaggableLogger(replay, Fields{"layer": "replay"})
}

// DAP returns true if the DAP projection should log handle allocation.
func DAP() bool {
	return dap
}

// DAPLogger returns a logger for the DAP projection.
func DAPLogger() Logger {
	return makeFlaggableLogger(dap, Fields{"layer": "dap"})
}

// CLI returns true if command line processing should be logged.
func CLI() bool {
	return cli
}

// CLILogger returns a logger for the command line front end.
func CLILogger() Logger {
	return makeFlaggableLogger(cli, Fields{"layer": "cli"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "movetrace-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "trace"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "trace":
			trace = true
		case "debuginfo":
			debugInfo = true
		case "replay":
			replay = true
		case "dap":
			dap = true
		case "cli":
			cli = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}
