package claudewire

import (
	"context"
	"iter"
)

// Query runs a one-shot prompt and returns an iterator over the response.
//
// A client is started with opts, the prompt is sent to the "default" session,
// and messages are yielded up to and including the ResultMessage. The client
// is closed when iteration ends, including when the caller stops early.
// Setup errors are yielded inline:
//
//	for msg, err := range claudewire.Query(ctx, "What is 2+2?",
//	    claudewire.WithPermissionMode("acceptEdits"),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // handle msg
//	}
func Query(ctx context.Context, prompt string, opts ...Option) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		log := applyOptions(opts).Log().With("component", "query")

		client := NewClient()

		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close client", "error", err)
			}
		}()

		if err := client.StartWithPrompt(ctx, prompt, opts...); err != nil {
			yield(nil, err)

			return
		}

		for msg, err := range client.ReceiveResponse(ctx) {
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}
