package core

// Logger is any leveled logger the services can report through.
// Optional args may carry a map of structured fields and/or the acting
// profile; implementations decide what to do with them.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, err error, args ...interface{})
	Fatal(msg string, args ...interface{})
}
