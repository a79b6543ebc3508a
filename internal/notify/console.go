package notify

import (
	"context"
	"fmt"
	"io"
)

// Console writes notifications to a writer, one line per message.
type Console struct {
	out io.Writer
}

// NewConsole creates a console notifier.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) NotifyFiled(ctx context.Context, message string) error {
	_, err := fmt.Fprintln(c.out, message)
	return err
}

func (c *Console) NotifyNeedsReview(ctx context.Context, message string) error {
	_, err := fmt.Fprintln(c.out, message)
	return err
}

func (c *Console) NotifyDigest(ctx context.Context, message string) error {
	_, err := fmt.Fprintln(c.out, message)
	return err
}
