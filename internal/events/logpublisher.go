package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"clinic-booking/internal/logging"
)

type logPublisher struct {
	logger *log.Logger
}

// NewLogPublisher creates a Publisher that writes every event to the given
// logger as a single JSON line.
func NewLogPublisher(logger *log.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p logPublisher) Publish(_ context.Context, name string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.PrintlnError(p.logger, fmt.Sprint("could not marshal event ", name, ": ", err))
		return
	}
	logging.PrintlnInfo(p.logger, fmt.Sprint("event ", name, " ", string(payload)))
}
