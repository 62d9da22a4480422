package claudewire

import (
	"context"
	stderrors "errors"
	"fmt"
)

// WithClient starts a client with opts, hands it to fn and closes it when fn
// returns.
//
// The error from fn takes precedence. A Close failure is only returned when fn
// succeeded:
//
//	err := claudewire.WithClient(ctx, func(c claudewire.Client) error {
//	    if err := c.Query(ctx, "Hello"); err != nil {
//	        return err
//	    }
//
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        // handle msg
//	    }
//
//	    return nil
//	}, claudewire.WithPermissionMode("acceptEdits"))
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) (err error) {
	client := NewClient()

	if err := client.Start(ctx, opts...); err != nil {
		return stderrors.Join(fmt.Errorf("start client: %w", err), client.Close())
	}

	defer func() {
		closeErr := client.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close client: %w", closeErr)
		}
	}()

	return fn(client)
}
