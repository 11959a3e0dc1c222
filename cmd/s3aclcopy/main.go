package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"s3aclcopy/pkg/config"
	"s3aclcopy/pkg/copier"
	"s3aclcopy/pkg/logging"
	"s3aclcopy/pkg/progress"
	"s3aclcopy/pkg/s3api"
)

func main() {
	app := &cli.App{
		Name:      "s3aclcopy",
		Usage:     "copy all objects under a prefix between buckets, preserving ACLs",
		ArgsUsage: "SOURCE DEST   (each is bucketName:prefix, prefix may be empty)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "logfile",
				Aliases: []string{"l"},
				Usage:   "write logs to `PATH` (default: discard)",
			},
			&cli.BoolFlag{
				Name:    "progress",
				Aliases: []string{"p"},
				Usage:   "show progress indicator (TTY, single-thread only)",
			},
			&cli.BoolFlag{
				Name:    "https",
				Aliases: []string{"s"},
				Usage:   "use TLS (port 443) instead of plaintext (port 80) for custom endpoints",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Value:   1,
				Usage:   "worker thread count, minimum 1",
			},
			&cli.StringFlag{
				Name:    "region",
				EnvVars: []string{"AWS_REGION"},
				Usage:   "bucket region",
			},
			&cli.StringFlag{
				Name:    "endpoint-url",
				EnvVars: []string{"S3_ENDPOINT_URL"},
				Usage:   "custom S3-compatible endpoint",
			},
			&cli.BoolFlag{
				Name:  "path-style",
				Usage: "use path-style addressing, required for MinIO and some other S3-compatible endpoints",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Value: 5,
				Usage: "per-key attempt cap before a key is reported failed, 0 retries forever",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "s3aclcopy: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowAppHelp(c)
		return fmt.Errorf("SOURCE and DEST are required")
	}

	source := parseLocation(c.Args().Get(0))
	dest := parseLocation(c.Args().Get(1))
	if source.Bucket == "" || dest.Bucket == "" {
		return fmt.Errorf("bucket name must not be empty")
	}

	threads := c.Int("threads")
	if threads < 1 {
		threads = 1
	}

	log, closer, err := logging.New(c.String("logfile"))
	if err != nil {
		return err
	}
	defer closer.Close()

	entry := log.WithField("run_id", uuid.NewString())

	ctx := context.Background()

	cfg := sessionConfig(c)
	awsCfg, err := config.Load(ctx, cfg)
	if err != nil {
		return err
	}

	counter := &progress.RequestCounter{}
	client := s3api.NewCountingClient(config.NewClient(awsCfg, cfg), counter)

	var reporter progress.Reporter = progress.Nop{}
	if progress.Enabled(c.Bool("progress"), threads, os.Stdout.Fd()) {
		reporter = progress.NewConsole(os.Stdout)
	}

	cp := copier.New(client, counter, reporter, entry, copier.Options{
		Source:      source,
		Dest:        dest,
		Threads:     threads,
		MaxAttempts: c.Int("max-attempts"),
		RetryDelay:  500 * time.Millisecond,
	})

	result, err := cp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\ncopied %d, skipped %d, retried %d\n", result.Copied, result.Skipped, result.Retried)

	if !result.Ok() {
		for _, ke := range result.Failed {
			fmt.Fprintf(os.Stderr, "failed: %s\n", ke.Error())
		}
		return fmt.Errorf("%d keys failed, %d dropped", len(result.Failed), result.Dropped)
	}
	return nil
}

// sessionConfig builds the S3 session settings from the parsed flags.
func sessionConfig(c *cli.Context) config.Config {
	return config.Config{
		Region:         c.String("region"),
		EndpointURL:    c.String("endpoint-url"),
		UseHTTPS:       c.Bool("https"),
		ForcePathStyle: c.Bool("path-style"),
	}
}

// parseLocation splits "bucketName:prefix" at the first ':'. A missing
// separator means an empty prefix.
func parseLocation(s string) copier.Location {
	name, prefix, _ := strings.Cut(s, ":")
	return copier.Location{Bucket: name, Prefix: prefix}
}
