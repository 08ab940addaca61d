package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/interfaces/adapter"
)

const transportName = "console"

// Processor handles one message synchronously.
type Processor interface {
	Process(ctx context.Context, msg adapter.Inbound) (string, error)
}

// REPL chats with the bot on a terminal as a single user.
type REPL struct {
	processor Processor
	userID    string
	firstName string
	in        io.Reader
	out       io.Writer
	log       zerolog.Logger
}

func NewREPL(processor Processor, userID, firstName string, in io.Reader, out io.Writer, log zerolog.Logger) *REPL {
	if userID == "" {
		userID = transportName
	}
	return &REPL{
		processor: processor,
		userID:    userID,
		firstName: firstName,
		in:        in,
		out:       out,
		log:       log.With().Str("component", "console").Logger(),
	}
}

// Run greets the user, then answers each input line until EOF, /exit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.exchange(ctx, "/start"); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if _, err := fmt.Fprint(r.out, "> "); err != nil {
			return err
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := r.exchange(ctx, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	_, err := fmt.Fprintln(r.out)
	return err
}

func (r *REPL) exchange(ctx context.Context, text string) error {
	reply, err := r.processor.Process(ctx, adapter.Inbound{
		Transport:   transportName,
		UserID:      r.userID,
		DisplayName: r.firstName,
		Text:        text,
	})
	if errors.Is(err, adapter.ErrIgnored) {
		return nil
	}
	if err != nil {
		r.log.Error().Err(err).Msg("message processing failed")
		return nil
	}
	_, err = fmt.Fprintf(r.out, "%s\n\n", reply)
	return err
}
