package commands

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// Prompts are package variables so tests can answer them.
var (
	promptInput   = huhInput
	promptConfirm = huhConfirm
)

// huhInput shows a text input prompt. When optional is false an empty
// answer is rejected.
func huhInput(title, description string, optional bool) (string, error) {
	var result string
	input := huh.NewInput().
		Title(title).
		Description(description).
		Value(&result)
	if !optional {
		input = input.Validate(func(s string) error {
			if s == "" {
				return errors.New("this field is required")
			}
			return nil
		})
	}
	if err := input.Run(); err != nil {
		return "", err
	}
	return result, nil
}

// huhConfirm shows a yes/no confirmation prompt.
func huhConfirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}
