// Package cmd provides CLI commands for the crease binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for status and tables.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (status, tables only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// pipelineFlags select the season, tables and artifact store. They are
// shared by run and status.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to crease.yaml",
			EnvVars: []string{"CREASE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "season",
			Usage:   "Season to extract, e.g. 20202021",
			EnvVars: []string{"CREASE_SEASON"},
		},
		&cli.StringSliceFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Table to load, with the tables it references (repeatable, default all)",
		},
		&cli.StringFlag{
			Name:  "store-backend",
			Usage: "Artifact store backend: fs, s3 or memory",
		},
		&cli.StringFlag{
			Name:  "store-path",
			Usage: "Artifact store path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "store-s3-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "store-s3-endpoint",
			Usage: "Custom endpoint for S3-compatible providers",
		},
	}
}
