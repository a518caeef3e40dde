package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"exthash/pkg/config"
)

type ReplCommand func(string, *REPLConfig) (output string, err error)

const (
	// Trigger for the help meta-command that prints out all help strings
	TriggerHelpMetacommand = ".help"

	// String that should be prepended to any error before being sent to the output writer
	ErrorPrependStr = "ERROR: "
)

var (
	ErrOverlappingCommands = errors.New("found overlapping commands")
	ErrReservedTrigger     = errors.New("trigger is reserved")

	// Error for when a sent trigger is not associated with any known commands
	ErrCommandNotFound = errors.New("command not found")
)

// REPL struct.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
	// Serializes commands of every client running this REPL.
	mtx sync.Mutex
}

// REPL Config struct.
type REPLConfig struct {
	clientID uuid.UUID
}

// ClientID returns the id of the client issuing the command.
func (replConfig *REPLConfig) ClientID() uuid.UUID {
	return replConfig.clientID
}

// Construct an empty REPL.
func NewRepl() *REPL {
	return &REPL{commands: make(map[string]ReplCommand), help: make(map[string]string)}
}

// Combines a slice of REPLs. Errors if any two share a trigger.
func CombineRepls(repls []*REPL) (*REPL, error) {
	combined := NewRepl()
	for _, r := range repls {
		for trigger, command := range r.commands {
			if _, exists := combined.commands[trigger]; exists {
				return nil, errors.Wrap(ErrOverlappingCommands, trigger)
			}
			if err := combined.AddCommand(trigger, command, r.help[trigger]); err != nil {
				return nil, err
			}
		}
	}
	return combined, nil
}

// Get commands.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// Get help.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// Add a command, along with its help string, to the set of commands.
// An existing trigger is overwritten.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) error {
	if trigger == TriggerHelpMetacommand {
		return errors.Wrap(ErrReservedTrigger, trigger)
	}
	r.commands[trigger] = action
	r.help[trigger] = help
	return nil
}

// Return all REPL commands' help strings as one string, sorted by trigger.
func (r *REPL) HelpString() string {
	triggers := make([]string, 0, len(r.help))
	for k := range r.help {
		triggers = append(triggers, k)
	}
	sort.Strings(triggers)
	var sb strings.Builder
	for _, k := range triggers {
		fmt.Fprintf(&sb, "%s: %s\n", k, r.help[k])
	}
	return sb.String()
}

// Execute runs one input line and returns what should be written back.
func (r *REPL) Execute(payload string, replConfig *REPLConfig) string {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return ""
	}
	trigger := fields[0]
	if trigger == TriggerHelpMetacommand {
		return r.HelpString()
	}
	command, exists := r.commands[trigger]
	if !exists {
		return fmt.Sprintf("%s%s\n", ErrorPrependStr, ErrCommandNotFound)
	}

	r.mtx.Lock()
	result, err := command(payload, replConfig)
	r.mtx.Unlock()
	if err != nil {
		return fmt.Sprintf("%s%s\n", ErrorPrependStr, err)
	}
	// Append newline if there is output and if it doesn't end with a newline already
	if len(result) != 0 && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result
}

// Exclusive runs f while no command is executing.
func (r *REPL) Exclusive(f func() error) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return f()
}

// Run writes the welcome string and then runs the REPL loop until input ends.
// Input and output default to Stdin and Stdout if nil.
func (r *REPL) Run(clientID uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}

	scanner := bufio.NewScanner(input)
	replConfig := &REPLConfig{clientID: clientID}
	fmt.Fprintf(output, "Welcome to the %s REPL! Please type '%s' to see the list of available commands.\n",
		config.DBName, TriggerHelpMetacommand)
	io.WriteString(output, prompt)
	for scanner.Scan() {
		io.WriteString(output, r.Execute(scanner.Text(), replConfig))
		io.WriteString(output, prompt)
	}
	// Print an additional line if we encountered an EOF character.
	io.WriteString(output, "\n")
}
