package port

// Logger is the narrow logging interface handed to components that should not
// depend on a concrete logging library.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
