// Package cli holds the helpers shared by the chatrelay subcommands:
// typed command errors with their exit codes, text/JSON output formatting
// and signal-aware contexts.
//
//	ctx, stop := cli.SetupSignalHandler(cmd.Context())
//	defer stop()
//
//	format, err := cli.ParseFormat(outputFlag)
//	if err != nil {
//	    return err
//	}
//	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
package cli
