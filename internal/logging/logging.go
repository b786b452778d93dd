// Package logging contains helpers to write leveled messages to the
// application logger.
package logging

import "log"

// PrintlnInfo logs the given value with an INFO prefix.
func PrintlnInfo(logger *log.Logger, v interface{}) {
	logger.Println("INFO:", v)
}

// PrintlnWarn logs the given value with a WARN prefix.
func PrintlnWarn(logger *log.Logger, v interface{}) {
	logger.Println("WARN:", v)
}

// PrintlnError logs the given value with an ERROR prefix.
func PrintlnError(logger *log.Logger, v interface{}) {
	logger.Println("ERROR:", v)
}
