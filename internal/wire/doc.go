// Package wire reads fields from decoded CLI messages.
//
// The CLI emits the same field in snake_case or camelCase depending on where
// the message originated. Every accessor takes the snake_case name, tries it
// first and falls back to the camelCase spelling.
package wire
