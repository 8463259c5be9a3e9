package core

// Logger is any service that can log application events.
// expected args: error | map[string]interface{} | Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user an event is about, when passed to a Logger.
type Person struct {
	ID       string
	Username string
	Email    string
}
