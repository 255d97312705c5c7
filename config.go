package streamjoin

import (
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.RWMutex
	logger   *zap.SugaredLogger
)

// NopLogger returns a logger that discards everything, the default until
// SetLogger is called (§2.2).
func NopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// SetLogger installs the package-wide logger used for decision logging
// (sample lengths, estimated cardinalities, chosen build side, §6
// "verbose flag").
func SetLogger(l *zap.SugaredLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// Logger returns the currently installed logger, defaulting to a no-op
// logger.
func Logger() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return NopLogger()
	}
	return logger
}

func init() {
	SetLogger(NopLogger())
}

// sampleLimitFromEnv reads JOIN_SAMPLE_LIMIT, defaulting to
// DefaultSampleLimit; a value of 0 disables sampling entirely and selects
// left as build side (§6, §8 boundary behaviour).
func sampleLimitFromEnv() int {
	v := os.Getenv("JOIN_SAMPLE_LIMIT")
	if v == "" {
		return DefaultSampleLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return DefaultSampleLimit
	}
	return n
}

// verboseFromEnv reads JOIN_VERBOSE: any of "1"/"true"/"yes" (case
// sensitive, matching the teacher's plain env-var checks) enables Info-level
// decision logging instead of Debug (§2.2, §6).
func verboseFromEnv() bool {
	switch os.Getenv("JOIN_VERBOSE") {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
