package manager

import (
	"fmt"
	"strings"
)

// Command describes one user-visible slash-command: its name, ordered
// formal parameter names (the last may be "..." for a variadic tail), and a
// short help string. The catalog is loaded once and read-only thereafter.
type Command struct {
	Name   string
	Params []string
	Help   string
}

// catalog lists every command, in help-text order.
var catalog = []Command{
	{Name: "help", Help: "Print a list of all commands"},
	{Name: "info", Help: "Print info about running games."},
	{Name: "new", Params: []string{"player"}, Help: "Start a new game against <player> (default: gnubg)"},
	{Name: "move", Params: []string{"from1", "to1", "..."}, Help: "Move checkers"},
	{Name: "double", Help: "Offer a double"},
	{Name: "roll", Help: "Roll the dice"},
	{Name: "accept", Help: "Accept a cube or resignation"},
	{Name: "redouble", Help: "Accept the cube one level higher than it was offered"},
	{Name: "reject", Help: "Reject a cube or resignation"},
	{Name: "resign", Help: "Offer to end the current game"},
	{Name: "quit", Help: "Quit active game"},
}

var helpText = buildHelpText()

// Lookup returns the catalog entry for name.
func Lookup(name string) (Command, bool) {
	for _, c := range catalog {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Catalog returns all command descriptors in help-text order.
func Catalog() []Command {
	out := make([]Command, len(catalog))
	copy(out, catalog)
	return out
}

// HelpText returns the full help block listing every command.
func HelpText() string {
	return helpText
}

func buildHelpText() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range catalog {
		b.WriteString("\n")
		b.WriteString(c.Name)
		for _, p := range c.Params {
			fmt.Fprintf(&b, " <%s>", p)
		}
		b.WriteString(": ")
		b.WriteString(c.Help)
	}
	return b.String()
}
