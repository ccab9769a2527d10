// Package extension defines the capability interface monitoring extensions
// expose to the chat front end. The front end parses user text into token
// lists and enforces sender authorization; extensions only see the tokens.
package extension

import "context"

// Extension is one monitoring capability behind the bot.
type Extension interface {
	// Name is the command keyword the front end routes on.
	Name() string

	// HandleCommand executes one tokenized command (e.g. ["scanner",
	// "add", "node1", "0x..."]) and returns the reply text. Validation
	// failures come back as errors for the front end to render.
	HandleCommand(ctx context.Context, args []string) (string, error)

	// Shutdown releases any running monitoring session.
	Shutdown() error
}
