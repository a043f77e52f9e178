package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/rotation"
)

// newEngine builds a rotation engine wired to terminal confirmation
// prompts, unless the user asked for non-interactive mode.
func newEngine(cfg *config.Config, dryRun bool) (*rotation.Engine, error) {
	engine, err := rotation.New(cfg, cfg.Logger)
	if err != nil {
		return nil, err
	}
	engine.DryRun = dryRun
	if !cfg.NonInteractive {
		engine.Confirm = promptConfirm
	}
	return engine, nil
}

// promptConfirm asks a yes/no question on stderr and reads the answer
// from stdin. Anything but y/yes declines.
func promptConfirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
