package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/usecase/publish"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func publishCommand() *cli.Command {
	var (
		cfg   config
		rec   model.Recommendation
		input string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "car",
			Usage:       "Recommended car",
			Destination: &rec.Car,
		},
		&cli.StringFlag{
			Name:        "tagline",
			Usage:       "One line summary",
			Destination: &rec.Tagline,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Recommendation body",
			Destination: &rec.Content,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing the recommendation ('-' for stdin)",
			Destination: &input,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, lensFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "publish",
		Usage: "Publish a recommendation to Lens",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cleanup, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			if input != "" {
				loaded, err := readRecommendation(input)
				if err != nil {
					return err
				}
				rec = *loaded
			}

			resolver, err := cfg.newResolver()
			if err != nil {
				return err
			}
			pipeline, err := cfg.newPipeline(ctx, resolver)
			if err != nil {
				return err
			}

			outcome, err := runPublish(ctx, c.Root().ErrWriter, pipeline, model.NewRequestID(), rec)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Saved %s: %s\n", rec.Car, outcome.ExplorerURL())
			return nil
		},
	}
}

func readRecommendation(path string) (*model.Recommendation, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open input file", goerr.V("path", path))
		}
		defer f.Close()
		r = f
	}

	var rec model.Recommendation
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode recommendation", goerr.V("path", path))
	}
	return &rec, nil
}

// runPublish runs the pipeline while showing a busy indicator on w
func runPublish(ctx context.Context, w io.Writer, pipeline *publish.Pipeline, id model.RequestID, rec model.Recommendation) (*model.PublishOutcome, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " Saving..."
	s.Start()
	defer s.Stop()

	return pipeline.PublishWithID(ctx, id, rec)
}
