package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/mrlokans/eln-import/internal/config"
	"github.com/mrlokans/eln-import/internal/elabftw"
	"github.com/mrlokans/eln-import/internal/importer"
	"github.com/mrlokans/eln-import/internal/logging"
)

// ImportCommand processes one .eln file exported from RSpace into
// eLabFTW.
type ImportCommand struct {
	Input   string
	LogFile string
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

// ParseFlags parses command line flags and the positional input path.
func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("eln-import", flag.ExitOnError)

	fs.StringVar(&cmd.LogFile, "log-file", "", "Optional path to a log file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input.eln>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Process an .eln file exported from RSpace, into eLabFTW. It creates the\n")
		fmt.Fprintf(os.Stderr, "Experiments with their files and descriptions.\n\n")
		fmt.Fprintf(os.Stderr, "The input must follow the ELN file format specification, see\n")
		fmt.Fprintf(os.Stderr, "https://github.com/TheELNConsortium/TheELNFileFormat/blob/master/SPECIFICATION.md\n\n")
		fmt.Fprintf(os.Stderr, "Required environment variables:\n")
		fmt.Fprintf(os.Stderr, "  API_HOST_URL  Target API base URL (e.g. https://elab.example.org/api/v2)\n")
		fmt.Fprintf(os.Stderr, "  API_KEY       API authentication key\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one input file, got %d arguments", fs.NArg())
	}
	cmd.Input = fs.Arg(0)

	return nil
}

// Run validates the environment, sets up logging and executes the
// import. Per-record failures are logged and do not fail the run.
func (cmd *ImportCommand) Run() error {
	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile := cfg.Log.File
	if cmd.LogFile != "" {
		logFile = cmd.LogFile
	}

	logger, err := logging.New(logFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := elabftw.NewClient(cfg.API.HostURL, cfg.API.Key, cfg.API.VerifyTLS)
	imp := importer.New(client, logger)

	if err := imp.Run(ctx, cmd.Input); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupt received, exiting")
			return nil
		}
		return err
	}

	return nil
}
