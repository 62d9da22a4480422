package cli

// Command is the fully resolved CLI invocation.
type Command struct {
	// Path is the CLI binary.
	Path string

	// Args are the command line arguments.
	Args []string

	// Env are the environment variables.
	Env []string
}

// FramingArgs returns the flags that select NDJSON framing.
//
// In streaming mode input arrives on stdin as stream-json. Otherwise the prompt
// is passed after "--" with --print and stdin carries nothing.
func FramingArgs(streaming bool, prompt string) []string {
	args := []string{"--output-format", "stream-json", "--verbose"}

	if streaming {
		return append(args, "--input-format", "stream-json")
	}

	return append(args, "--print", "--", prompt)
}

// BuildCommand joins option flags and framing flags.
func BuildCommand(path string, optionArgs, env []string, streaming bool, prompt string) *Command {
	framing := FramingArgs(streaming, prompt)
	args := make([]string, 0, len(optionArgs)+len(framing))
	args = append(args, optionArgs...)
	args = append(args, framing...)

	return &Command{Path: path, Args: args, Env: env}
}
