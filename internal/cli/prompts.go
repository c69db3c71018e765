package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexAgents/internal/dataflows"
)

const (
	actionAnalyze = "Analyze another symbol"
	actionHistory = "Browse recent analyses"
	actionExit    = "Exit"
)

// PromptForTicker prompts the user to enter a ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the ticker symbol (e.g., AAPL, NVDA, BTC-USD):",
		Help:    "Equities use the plain ticker; crypto pairs end in -USD.",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		return dataflows.ValidateSymbol(str)
	}))
	if err != nil {
		return "", err
	}
	return dataflows.NormalizeSymbol(ticker), nil
}

// PromptForAnalysisDate prompts the user to enter an analysis date
func PromptForAnalysisDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the analysis date (YYYY-MM-DD):",
		Help:    "Data is collected up to and including this date.",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(validateDate))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(dateStr), nil
}

func validateDate(val interface{}) error {
	str, _ := val.(string)
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", str)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	if parsed.After(time.Now().AddDate(0, 0, 1)) {
		return fmt.Errorf("analysis date cannot be in the future")
	}
	return nil
}

// PromptForNextAction asks what to do once an analysis finishes.
func PromptForNextAction() (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What next?",
		Options: []string{actionAnalyze, actionHistory, actionExit},
		Default: actionAnalyze,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return choice, nil
}

// PromptForConfirmation asks a yes/no question.
func PromptForConfirmation(message string, def bool) (bool, error) {
	ok := def
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &ok)
	return ok, err
}
