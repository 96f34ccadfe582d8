package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Approver decides whether the execution stage may mutate the remote
// catalog after the reporting preview has been shown.
type Approver interface {
	Approve(ctx context.Context, preview string) (bool, error)
}

type terminalApprover struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalApprover prompts the operator on the terminal.
func NewTerminalApprover() Approver {
	return &terminalApprover{in: os.Stdin, out: os.Stdout}
}

func (a *terminalApprover) Approve(ctx context.Context, preview string) (bool, error) {
	fmt.Fprintln(a.out, preview)
	fmt.Fprint(a.out, "Proceed with catalog migration? [y/N]: ")

	answerCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(a.in)
		line, err := reader.ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		answerCh <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errCh:
		return false, fmt.Errorf("read approval answer: %w", err)
	case answer := <-answerCh:
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

type autoApprover struct{}

// NewAutoApprover approves unconditionally, for unattended runs with
// pipeline.require_approval disabled.
func NewAutoApprover() Approver {
	return &autoApprover{}
}

func (autoApprover) Approve(_ context.Context, preview string) (bool, error) {
	log.Info("Approval gate disabled, proceeding")
	log.Info(preview)
	return true, nil
}
