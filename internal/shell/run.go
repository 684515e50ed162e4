package shell

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// NewCompleter completes shell commands and agent ids after `\agent`.
func NewCompleter(agentIDs []string) readline.AutoCompleter {
	agents := append([]string{autoAgent}, agentIDs...)
	items := make([]readline.PrefixCompleterInterface, 0, len(Commands))
	for _, cmd := range Commands {
		if cmd == `\agent` {
			items = append(items, readline.PcItem(cmd, readline.PcItemDynamic(func(string) []string {
				return agents
			})))
			continue
		}
		items = append(items, readline.PcItem(cmd))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run starts the interactive loop on the terminal. It returns on \exit, EOF or ctx cancellation.
// historyFile may be empty to keep history in memory only.
func Run(ctx context.Context, chat *Chat, banner, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          chat.Prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    NewCompleter(chat.router.Registry().IDs()),
		InterruptPrompt: "^C",
		EOFPrompt:       `\exit`,
	})
	if err != nil {
		return fmt.Errorf("failed to start terminal: %w", err)
	}
	defer rl.Close()

	chat.out = rl.Stdout()

	fmt.Fprintln(rl.Stdout(), banner)
	fmt.Fprintln(rl.Stdout(), `Type \help for commands or \exit to quit.`)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rl.Close()
		case <-done:
		}
	}()

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if chat.Handle(ctx, line) {
			return nil
		}
		rl.SetPrompt(chat.Prompt())
	}
}
