package plugin

import (
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
)

// Command is one of the four CNI operations. The zero value is invalid.
type Command int

const (
	CommandAdd Command = iota + 1
	CommandDel
	CommandCheck
	CommandVersion
)

var commandNames = map[Command]string{
	CommandAdd:     "ADD",
	CommandDel:     "DEL",
	CommandCheck:   "CHECK",
	CommandVersion: "VERSION",
}

// ParseCommand converts a CNI_COMMAND value. Matching is case-sensitive.
func ParseCommand(s string) (Command, error) {
	for cmd, name := range commandNames {
		if name == s {
			return cmd, nil
		}
	}
	if s == "" {
		return 0, cnierrors.NewEnvError("CNI_COMMAND was not provided")
	}
	return 0, cnierrors.Wrap(cnierrors.ErrCodeInvalidEnv, "CNI_COMMAND is not valid", errUnknownCommand(s))
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// NeedsNetns reports whether the command operates on a container namespace.
func (c Command) NeedsNetns() bool {
	return c == CommandAdd || c == CommandDel || c == CommandCheck
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string {
	return "unknown command " + string(e)
}
