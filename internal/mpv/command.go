package mpv

import (
	"encoding/json"
	"fmt"
)

// Command is one request on the player IPC protocol. Commands are immutable
// values constructed per call.
type Command struct {
	Name string
	Args []any
}

// SetProperty builds a set_property command.
func SetProperty(property string, value any) Command {
	return Command{Name: "set_property", Args: []any{property, value}}
}

// Pause builds the pause toggle used by the barrier protocol.
func Pause(paused bool) Command {
	return SetProperty("pause", paused)
}

// SeekStart rewinds playback to the absolute start of the file.
func SeekStart() Command {
	return Command{Name: "seek", Args: []any{0, "absolute"}}
}

// GetProperty builds a get_property query.
func GetProperty(property string) Command {
	return Command{Name: "get_property", Args: []any{property}}
}

// TimePos queries the current playback position in seconds.
func TimePos() Command {
	return GetProperty("time-pos")
}

// Quit asks the player to exit.
func Quit() Command {
	return Command{Name: "quit"}
}

// ExpectsReply reports whether the channel must read a response line for this
// command. Only queries carry a payload worth waiting for.
func (c Command) ExpectsReply() bool {
	return c.Name == "get_property"
}

// String renders the command for log lines.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// encode serializes the command as one newline-terminated JSON record of the
// shape {"command": [name, args...]}.
func (c Command) encode() ([]byte, error) {
	parts := make([]any, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	payload, err := json.Marshal(map[string]any{"command": parts})
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", c.Name, err)
	}
	return append(payload, '\n'), nil
}

// Result is the parsed reply to a query command.
type Result struct {
	OK   bool
	Data any
}

// Float extracts the payload as a float64. Player position replies arrive as
// JSON numbers.
func (r Result) Float() (float64, bool) {
	if !r.OK {
		return 0, false
	}
	f, ok := r.Data.(float64)
	return f, ok
}

type response struct {
	Error string `json:"error"`
	Data  any    `json:"data"`
	Event string `json:"event"`
}

func parseResponse(line []byte) (Result, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if resp.Event != "" {
		// Async event lines interleave with replies on the same socket.
		return Result{}, errNotAReply
	}
	if resp.Error != "success" {
		return Result{OK: false}, fmt.Errorf("%w: %s", ErrPlayerError, resp.Error)
	}
	return Result{OK: true, Data: resp.Data}, nil
}
