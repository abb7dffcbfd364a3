package models

import "strings"

// CommandType enumerates the member commands accepted over WhatsApp.
type CommandType string

const (
	CommandBill    CommandType = "bill"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

// commandAliases maps accepted first words to commands. Members often type
// "due" or "balance" when they mean their bill.
var commandAliases = map[string]CommandType{
	"bill":    CommandBill,
	"due":     CommandBill,
	"balance": CommandBill,
	"help":    CommandHelp,
	"hi":      CommandHelp,
}

// Command represents a parsed instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
func ParseCommand(message string) Command {
	tokens := strings.Fields(strings.ToLower(message))
	cmd := Command{Type: CommandUnknown, Raw: message}

	if len(tokens) == 0 {
		return cmd
	}

	if t, ok := commandAliases[strings.TrimPrefix(tokens[0], "/")]; ok {
		cmd.Type = t
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
