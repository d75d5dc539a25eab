package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

// challengeDriver is the part of the engine the prompt drives.
type challengeDriver interface {
	LoadChallenge(ctx context.Context) (verification.Challenge, error)
	SubmitAnswer(ctx context.Context, answer string) (verification.Challenge, error)
	RestartChallenge(ctx context.Context) (verification.Challenge, error)
	CancelVerification() int
}

// prompter asks the user to solve challenges on a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// solve runs one challenge to completion. It returns nil once verified,
// gate.ErrCancelledByPurge if the user gave up, or the error that stopped
// it.
func (p *prompter) solve(ctx context.Context, d challengeDriver) error {
	c, err := d.LoadChallenge(ctx)
	for {
		if errors.Is(err, verification.ErrVerificationExhausted) {
			fmt.Fprint(p.out, "No attempts left. Try a new challenge? [y/N] ")
			answer, rerr := p.readLine()
			if rerr != nil || !strings.EqualFold(answer, "y") {
				return p.cancel(d)
			}
			c, err = d.RestartChallenge(ctx)
			continue
		}
		if err != nil {
			return err
		}
		if c.Status == verification.StatusVerified {
			fmt.Fprintln(p.out, "Verified.")
			return nil
		}

		fmt.Fprintf(p.out, "\nVerification required (%d attempt(s) left)\n  %s\nAnswer, or 'cancel': ",
			c.AttemptsRemaining, c.Prompt)
		answer, rerr := p.readLine()
		if rerr != nil {
			return p.cancel(d)
		}
		if answer == "cancel" {
			return p.cancel(d)
		}

		prev := c.ID
		c, err = d.SubmitAnswer(ctx, answer)
		if err == nil && c.ID == prev && c.Status == verification.StatusReady {
			fmt.Fprintln(p.out, "Incorrect, here is a new one.")
		}
	}
}

func (p *prompter) cancel(d challengeDriver) error {
	n := d.CancelVerification()
	fmt.Fprintf(p.out, "Verification cancelled, %d held request(s) dropped.\n", n)
	return gate.ErrCancelledByPurge
}
