package board

import (
	"context"
	"io"
	"os"
)

// Port pumps bytes from the link into the Receiver.
type Port struct {
	Reader   io.Reader
	Receiver *Receiver
}

// Run reads until ctx is done or the link fails. Read timeouts and
// empty reads are not failures.
func (p *Port) Run(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			p.Receiver.HandleByte(ctx, b)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Port) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := p.Reader.Read(buf)
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}
