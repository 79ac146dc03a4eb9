package constants

// Command kinds understood by the dispatcher. Anything else is ignored.
const (
	CommandPrint  = "print"
	CommandCancel = "cancel"
	CommandPause  = "pause"
	CommandResume = "resume"
)
