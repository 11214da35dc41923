package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var (
	// ErrMissingInput is returned when a value is neither given as a flag nor
	// obtainable by prompting.
	ErrMissingInput = errors.New("missing input")

	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("aborted")
)

// Choice is one selectable option. Label is shown, Value is returned.
type Choice struct {
	Label string
	Value string
}

// Prompter asks the user for input.
type Prompter interface {
	Select(label string, choices []Choice) (string, error)
	Input(label string) (string, error)
	Confirm(label string) (bool, error)
}

// TerminalPrompter prompts on the controlling terminal.
type TerminalPrompter struct{}

// Select shows choices and returns the value of the picked one.
func (TerminalPrompter) Select(label string, choices []Choice) (string, error) {
	items := make([]string, len(choices))
	for i, ch := range choices {
		items[i] = ch.Label
	}
	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	i, _, err := sel.Run()
	if err != nil {
		return "", promptError(err)
	}
	return choices[i].Value, nil
}

// Input reads a non-empty line.
func (TerminalPrompter) Input(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if s == "" {
				return errors.New("a value is required")
			}
			return nil
		},
	}
	v, err := p.Run()
	if err != nil {
		return "", promptError(err)
	}
	return v, nil
}

// Confirm asks a yes/no question; anything but yes is false.
func (TerminalPrompter) Confirm(label string) (bool, error) {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, promptError(err)
	}
	return true, nil
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}

func (c *Context) prompter() Prompter {
	if c.Prompter != nil {
		return c.Prompter
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return TerminalPrompter{}
	}
	return nil
}

// Pick returns value when set. Otherwise it loads the choices and asks the
// user to select one. flag names the option in error messages.
func (c *Context) Pick(flag, value, label string, load func() ([]Choice, error)) (string, error) {
	if value != "" {
		return value, nil
	}
	p := c.prompter()
	if p == nil {
		return "", fmt.Errorf("%w: --%s is required when not running interactively", ErrMissingInput, flag)
	}
	choices, err := load()
	if err != nil {
		return "", err
	}
	if len(choices) == 0 {
		return "", fmt.Errorf("%w: nothing to choose for --%s", ErrMissingInput, flag)
	}
	return p.Select(label, choices)
}

// Ask returns value when set and otherwise reads it from the user.
func (c *Context) Ask(flag, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	p := c.prompter()
	if p == nil {
		return "", fmt.Errorf("%w: --%s is required when not running interactively", ErrMissingInput, flag)
	}
	return p.Input(label)
}

// Confirm returns nil when the user agrees (or --yes was given) and
// ErrAborted when they decline.
func (c *Context) Confirm(label string) error {
	if c.Yes {
		return nil
	}
	p := c.prompter()
	if p == nil {
		return fmt.Errorf("%w: pass --yes to confirm when not running interactively", ErrMissingInput)
	}
	ok, err := p.Confirm(label)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}
