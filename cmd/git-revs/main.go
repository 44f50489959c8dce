// git-revs evaluates revset expressions against a git repository and
// prints the resulting commits, one per line, in reverse-topological
// order.
//
//	git revs "roots(draft() & ::.)"
//	git revs --ast "gca(., origin/master)"
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	revset "github.com/revsets/revset-go"
	"github.com/revsets/revset-go/config"
	"github.com/revsets/revset-go/internal/output"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "git-revs",
		Usage:     "Query commits with revset expressions",
		Version:   "1.0.0",
		ArgsUsage: "EXPRESSION [EXPRESSION...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Path to Git repository",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (hash, oneline)",
				Value:   "hash",
			},
			&cli.BoolFlag{
				Name:  "ast",
				Usage: "Print the parsed expression tree instead of evaluating",
			},
			&cli.BoolFlag{
				Name:  "no-alias",
				Usage: "Ignore user-defined revset aliases",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Action: evalAction,
	}
}

func evalAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowAppHelp(c)
	}

	if c.Bool("ast") {
		for _, arg := range c.Args().Slice() {
			e, err := revset.Parse(arg)
			if err != nil {
				return err
			}
			fmt.Println(e)
		}
		return nil
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo, err := revset.Open(revset.Options{
		Path:              c.String("repo"),
		PublicRefGlobs:    cfg.PublicRefs,
		Aliases:           cfg.Aliases,
		DisableGitAliases: c.Bool("no-alias"),
	})
	if err != nil {
		return err
	}

	writer := newWriter(c, cfg)
	for _, arg := range c.Args().Slice() {
		var set *revset.Set
		if c.Bool("no-alias") {
			set, err = repo.Revs(arg)
		} else {
			set, err = repo.AnyRevs(arg)
		}
		if err != nil {
			return err
		}
		if err := writer.Write(os.Stdout, repo, set); err != nil {
			return err
		}
	}
	return nil
}

func newWriter(c *cli.Context, cfg *config.Config) output.SetWriter {
	format := cfg.Output.Format
	if c.IsSet("format") || format == "" {
		format = c.String("format")
	}
	switch output.Format(format) {
	case output.FormatOneline:
		return &output.OnelineWriter{NoColor: c.Bool("no-color") || cfg.Output.Color == "never"}
	default:
		return &output.HashWriter{}
	}
}

func main() {
	if err := App().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
