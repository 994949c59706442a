package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/capture"
	"github.com/kibbyd/rps-adaptive/internal/game"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/stability"
)

// #region console
// console is the round-resolution side of the game: it reads commands,
// resolves rounds and prints results. The camera worker only reaches it
// through the pending mailbox.
type console struct {
	session *game.Session
	latest  *capture.Mailbox[stability.Sample] // nil when the camera is off
	pending *capture.Mailbox[move.Move]        // nil when the camera is off
	out     io.Writer
	log     *zap.Logger

	win  *color.Color
	lose *color.Color
	draw *color.Color
	info *color.Color
}

func newConsole(session *game.Session, out io.Writer, logger *zap.Logger) *console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &console{
		session: session,
		out:     out,
		log:     logger,
		win:     color.New(color.FgGreen, color.Bold),
		lose:    color.New(color.FgRed, color.Bold),
		draw:    color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
	}
}

// attachCamera connects the capture worker's mailboxes.
func (c *console) attachCamera(latest *capture.Mailbox[stability.Sample], pending *capture.Mailbox[move.Move]) {
	c.latest = latest
	c.pending = pending
}

// #endregion console

// #region run
// run reads commands from in until quit, EOF or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var notify <-chan struct{}
	if c.pending != nil {
		notify = c.pending.Notify()
	}

	c.help()
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case <-notify:
			if m, ok := c.pending.Peek(); ok {
				c.info.Fprintf(c.out, "\ngesture confirmed: %s (press Enter to play it)\n", m)
			}
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			if c.handle(line) {
				return nil
			}
		}
	}
}

// #endregion run

// #region commands
// handle executes one command line and reports whether to quit.
func (c *console) handle(line string) (quit bool) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "quit", "exit", "q":
		c.printScore()
		return true
	case "score":
		c.printScore()
		return false
	case "help", "?":
		c.help()
		return false
	case "status":
		c.status()
		return false
	case "", "c", "confirm":
		c.confirm()
		return false
	}

	m, err := move.Parse(cmd)
	if err != nil {
		fmt.Fprintf(c.out, "unknown command %q (type help)\n", line)
		return false
	}
	c.play(m, game.SourceManual)
	return false
}

func (c *console) confirm() {
	if c.pending == nil {
		fmt.Fprintln(c.out, "camera is off; type rock, paper or scissors")
		return
	}
	r, ok, err := c.session.ConfirmPending(c.pending)
	if !ok {
		fmt.Fprintln(c.out, "no gesture confirmed yet")
		return
	}
	c.report(r, err)
}

func (c *console) play(m move.Move, src game.Source) {
	r, err := c.session.PlayRound(m, src)
	if errors.Is(err, game.ErrInvalidMove) {
		fmt.Fprintf(c.out, "invalid move %v\n", m)
		return
	}
	c.report(r, err)
}

// report prints a resolved round. A save error does not undo the round.
func (c *console) report(r game.Round, err error) {
	if err != nil {
		c.log.Error("round persisted with errors", zap.Int("round", r.Number), zap.Error(err))
	}
	fmt.Fprintf(c.out, "round %d: you %s, AI %s. ", r.Number, r.Player, r.AI)
	switch r.Result {
	case move.PlayerWins:
		c.win.Fprintln(c.out, "You win!")
	case move.AIWins:
		c.lose.Fprintln(c.out, "AI wins!")
	default:
		c.draw.Fprintln(c.out, "Draw.")
	}
}

func (c *console) printScore() {
	s := c.session.Score()
	fmt.Fprintf(c.out, "score after %d rounds: you %d, AI %d, draws %d\n", s.Rounds(), s.Player, s.AI, s.Draws)
}

// status prints what the camera currently sees.
func (c *console) status() {
	if c.latest == nil {
		fmt.Fprintln(c.out, "camera is off")
		return
	}
	s, ok := c.latest.Peek()
	switch {
	case !ok:
		fmt.Fprintln(c.out, "camera: no frames yet")
	case !s.Known:
		fmt.Fprintln(c.out, "camera: no gesture")
	default:
		fmt.Fprintf(c.out, "camera: %s\n", s.Move)
	}
	if m, ok := c.pending.Peek(); ok {
		fmt.Fprintf(c.out, "pending: %s\n", m)
	}
}

func (c *console) help() {
	c.info.Fprintln(c.out, "commands: rock|paper|scissors (r/p/s), Enter or c to play the camera gesture, status, score, quit")
}

// #endregion commands
