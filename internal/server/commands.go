package server

import (
	"encoding/json"
	"fmt"

	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/taptone/internal/tracker"
)

// Controller is the part of the tracker a client may drive
type Controller interface {
	SetThreshold(percent int) error
	SetFrequencyWindow(min, max float64) error
	SetMaxAverages(n int) error
	SetAveraging(enabled bool)
	SetHold(hold bool)
	ResetAveraging()
	Display() tracker.DisplayState
}

// WSCommand is a command received from a WebSocket client
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WSReply answers a command
type WSReply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CommandHandler applies client commands to a Controller
type CommandHandler struct {
	controller Controller
	logger     logging.Logger
}

func NewCommandHandler(controller Controller, logger logging.Logger) *CommandHandler {
	return &CommandHandler{
		controller: controller,
		logger:     logger,
	}
}

// Handle processes one command and returns the reply for the client
func (h *CommandHandler) Handle(cmd WSCommand) WSReply {
	reply := WSReply{Type: "ack", ID: cmd.ID, Command: cmd.Type}

	var err error
	switch cmd.Type {
	case "set_threshold":
		var data struct {
			Percent int `json:"percent"`
		}
		if err = decode(cmd.Data, &data); err == nil {
			err = h.controller.SetThreshold(data.Percent)
		}
	case "set_frequency_window":
		var data struct {
			Min float64 `json:"min_hz"`
			Max float64 `json:"max_hz"`
		}
		if err = decode(cmd.Data, &data); err == nil {
			err = h.controller.SetFrequencyWindow(data.Min, data.Max)
		}
	case "set_max_averages":
		var data struct {
			Count int `json:"count"`
		}
		if err = decode(cmd.Data, &data); err == nil {
			err = h.controller.SetMaxAverages(data.Count)
		}
	case "set_averaging":
		var data struct {
			Enabled bool `json:"enabled"`
		}
		if err = decode(cmd.Data, &data); err == nil {
			h.controller.SetAveraging(data.Enabled)
		}
	case "set_hold":
		var data struct {
			Hold bool `json:"hold"`
		}
		if err = decode(cmd.Data, &data); err == nil {
			h.controller.SetHold(data.Hold)
		}
	case "reset_averaging":
		h.controller.ResetAveraging()
	case "get_display":
		reply.Data = h.controller.Display()
	default:
		err = fmt.Errorf("unknown command type: %s", cmd.Type)
	}

	if err != nil {
		h.logger.Warn("WebSocket command failed", logging.Fields{
			"command": cmd.Type,
			"error":   err.Error(),
		})
		reply.Type = "error"
		reply.Error = err.Error()
	}
	return reply
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing command data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid command data: %w", err)
	}
	return nil
}
