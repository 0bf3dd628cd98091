package runner

// Runner invocation constants
const (
	// TrxLoggerFlag makes the runner write TRX result files
	TrxLoggerFlag = "/Logger:TRX"

	// ExitCodeUnknown is reported when the process did not exit normally
	ExitCodeUnknown = -1
)
