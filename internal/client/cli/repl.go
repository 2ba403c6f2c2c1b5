package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printFn is a test seam for the prompt.
var printFn = fmt.Print

// printlnFn is a test seam for REPL messages.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App satisfies it;
// tests can provide a lightweight stub.
type execIface interface {
	status() string
	touch()
	dispatch(ctx context.Context, cmd string, args []string) error
}

const helpText = `Available commands:
  create                      create a new vault
  unlock | lock               open or close the vault
  status                      show vault, save and clipboard state
  list [query]                list entries, optionally filtered
  show <id> [-p]              show an entry (-p reveals the password)
  add | edit <id> | delete <id>
  history <id>                list prior versions
  restore <id> <n>            restore version n from history
  tag <id> <tags> | untag <id> <tag>
  copy password|username|otp <id>
  gen [-n len] [-no-lower] [-no-upper] [-no-numbers] [-no-symbols] [-copy]
  totp <id> [watch [seconds]] show the current one-time code
  import-otp <id> <otpauth-uri>
  health                      check for weak, reused and old passwords
  exit | quit`

// runREPL reads commands from r until EOF or a quit command. Each line is
// reported as user activity before it is dispatched. Command errors are
// printed and the loop continues.
func runREPL(ctx context.Context, a execIface, r *bufio.Reader) {
	for {
		printFn(fmt.Sprintf("keynest (%s)> ", a.status()))
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			printlnFn()
			return
		}
		a.touch()

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "?":
			printlnFn(helpText)
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		err = a.dispatch(ctx, cmd, args)
		switch {
		case err == nil:
		case errors.Is(err, errUsage):
			printlnFn("Usage:", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		default:
			printlnFn("Error:", describe(err))
		}
	}
}

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}
