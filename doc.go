// Package claudewire drives the Claude CLI as a subprocess over its
// newline-delimited JSON control protocol.
//
// A session owns one CLI process. Stdout frames are demultiplexed into
// conversation messages and control traffic. Control requests from the CLI
// (tool permission checks, hook callbacks and in-process MCP messages) are
// answered by Go callbacks, and outbound control requests (interrupt, model
// and permission changes, file rewinds, MCP management) are correlated with
// their responses. A shared AbortSignal unblocks every pending operation and
// terminates the CLI.
//
// # Basic Usage
//
// For simple, one-shot queries, use the Query function:
//
//	ctx := context.Background()
//	for msg, err := range claudewire.Query(ctx, "What is 2+2?",
//	    claudewire.WithPermissionMode("acceptEdits"),
//	    claudewire.WithMaxTurns(1),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    switch m := msg.(type) {
//	    case *claudewire.AssistantMessage:
//	        for _, block := range m.Content {
//	            if text, ok := block.(*claudewire.TextBlock); ok {
//	                fmt.Println(text.Text)
//	            }
//	        }
//	    case *claudewire.ResultMessage:
//	        fmt.Printf("Completed in %dms\n", m.DurationMs)
//	    }
//	}
//
// # Interactive Sessions
//
// For multi-turn conversations, use NewClient or the WithClient helper:
//
//	// Using WithClient for automatic lifecycle management
//	err := claudewire.WithClient(ctx, func(c claudewire.Client) error {
//	    if err := c.Query(ctx, "Hello Claude"); err != nil {
//	        return err
//	    }
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        // process message...
//	    }
//	    return nil
//	},
//	    claudewire.WithLogger(slog.Default()),
//	    claudewire.WithPermissionMode("acceptEdits"),
//	)
//
//	// Or using NewClient directly for more control
//	client := claudewire.NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx,
//	    claudewire.WithLogger(slog.Default()),
//	    claudewire.WithPermissionMode("acceptEdits"),
//	)
//
// # Streaming Input and Abort
//
// StreamInput writes items from an iterator. Aborting the shared signal stops
// the stream before the next item and fails pending control requests:
//
//	sig := claudewire.NewAbortSignal()
//	client.Start(ctx, claudewire.WithAbortSignal(sig))
//	go func() { <-time.After(time.Minute); sig.Abort("deadline") }()
//	err := client.StreamInput(ctx, claudewire.MessagesFromChannel(prompts), "")
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client.Start(ctx, claudewire.WithLogger(logger))
//
// # Error Handling
//
// Typed errors describe each failure:
//
//	if err := client.Start(ctx); err != nil {
//	    if cliErr, ok := errors.AsType[*claudewire.CLINotFoundError](err); ok {
//	        log.Fatalf("Claude CLI not installed, searched: %v", cliErr.SearchedPaths)
//	    }
//	    if procErr, ok := errors.AsType[*claudewire.ProcessError](err); ok {
//	        log.Fatalf("CLI process failed with exit code %d: %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    log.Fatal(err)
//	}
//
// # Requirements
//
// The Claude CLI must be installed and available in PATH. Use WithCliPath
// for a custom location, or WithProcessFactory to run it elsewhere.
package claudewire
