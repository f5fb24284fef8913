package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slipstream/slskbridge/internal/api"
	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/types"
	indexertypes "github.com/slipstream/slskbridge/internal/indexer/types"
)

// newLocalServer builds the services against slskd without serving HTTP.
func newLocalServer(configPath string) (*api.Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	client := slskd.NewFromConfig(cfg.Slskd.ClientConfig())
	return api.NewServer(client, nil, cfg, log), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func RunQueueCommand(configPath *string) *cobra.Command {
	var asJSON bool

	command := &cobra.Command{
		Use:   "queue",
		Short: "List releases in the slskd download queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newLocalServer(*configPath)
			if err != nil {
				return err
			}
			releases, err := server.Downloader().GetQueue(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), releases)
			}
			return printQueue(cmd.OutOrStdout(), releases)
		},
	}
	command.Flags().BoolVar(&asJSON, "json", false, "print releases as JSON")

	command.AddCommand(RunAddCommand(configPath))
	command.AddCommand(RunRemoveCommand(configPath))

	return command
}

func printQueue(out io.Writer, releases []types.Release) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSIZE\tETA\tTITLE")
	for i := range releases {
		r := &releases[i]
		eta := "-"
		if r.ETA >= 0 {
			eta = (time.Duration(r.ETA) * time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%s\n",
			r.ID, r.Status, r.Progress, humanize.IBytes(uint64(r.TotalSize)), eta, r.Title)
	}
	return w.Flush()
}

func RunAddCommand(configPath *string) *cobra.Command {
	var req downloader.AddRequest

	command := &cobra.Command{
		Use:   "add",
		Short: "Enqueue a directory (or single file) from a search response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newLocalServer(*configPath)
			if err != nil {
				return err
			}
			id, err := server.Downloader().Add(cmd.Context(), &req)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		},
	}
	command.Flags().StringVar(&req.SearchID, "search-id", "", "search the release was found in")
	command.Flags().StringVar(&req.Username, "username", "", "peer sharing the release")
	command.Flags().StringVar(&req.DownloadPath, "path", "", "remote directory or file path")

	return command
}

func RunRemoveCommand(configPath *string) *cobra.Command {
	var deleteData bool

	command := &cobra.Command{
		Use:   "remove <id>",
		Short: "Cancel and remove every transfer of a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newLocalServer(*configPath)
			if err != nil {
				return err
			}
			if err := server.Downloader().Remove(cmd.Context(), args[0], deleteData); err != nil {
				return errors.Wrapf(err, "remove %s", args[0])
			}
			cmd.Println("removed", args[0])
			return nil
		},
	}
	command.Flags().BoolVar(&deleteData, "delete-data", false, "also delete downloaded files")

	return command
}

func RunSearchCommand(configPath *string) *cobra.Command {
	var (
		criteria indexertypes.SearchCriteria
		asJSON   bool
	)

	command := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the Soulseek network through slskd",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newLocalServer(*configPath)
			if err != nil {
				return err
			}
			criteria.Query = strings.Join(args, " ")
			result, err := server.Search().Search(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printReleases(cmd.OutOrStdout(), result.Releases)
		},
	}
	command.Flags().DurationVar(&criteria.Timeout, "timeout", 0, "how long slskd collects responses")
	command.Flags().IntVar(&criteria.Limit, "limit", 25, "maximum number of releases")
	command.Flags().IntVar(&criteria.MinFileCount, "min-files", 0, "minimum audio files per release")
	command.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return command
}

func printReleases(out io.Writer, releases []indexertypes.ReleaseInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tFILES\tSIZE\tSPEED\tPATH")
	for i := range releases {
		r := &releases[i]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s/s\t%s\n",
			r.Source, r.FileCount, humanize.IBytes(uint64(r.Size)), humanize.IBytes(uint64(r.UploadSpeed)), r.DownloadURL)
	}
	return w.Flush()
}

func RunTestCommand(configPath *string) *cobra.Command {
	var timeout time.Duration

	command := &cobra.Command{
		Use:   "test",
		Short: "Check that slskd is reachable with the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newLocalServer(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result := server.Downloader().Test(ctx)
			if !result.Success {
				return errors.New(result.Message)
			}
			cmd.Println(result.Message)
			return nil
		},
	}
	command.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "connection timeout")

	return command
}
