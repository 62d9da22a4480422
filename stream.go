package claudewire

import (
	"iter"
)

// MessagesFromSlice creates an input stream from a slice of items.
// This is useful for sending a fixed set of messages with StreamInput.
func MessagesFromSlice[T any](items []T) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// MessagesFromChannel creates an input stream from a channel.
// This is useful for dynamic message generation where messages are produced over time.
// The iterator completes when the channel is closed.
func MessagesFromChannel[T any](ch <-chan T) iter.Seq[any] {
	return func(yield func(any) bool) {
		for item := range ch {
			if !yield(item) {
				return
			}
		}
	}
}

// SingleMessage creates an input stream with a single text prompt.
func SingleMessage(content string) iter.Seq[any] {
	return MessagesFromSlice([]string{content})
}

// NewUserMessage creates a text user turn for sessionID. An empty sessionID
// uses the stream's default.
func NewUserMessage(content, sessionID string) *UserInput {
	return &UserInput{Text: content, SessionID: sessionID}
}
