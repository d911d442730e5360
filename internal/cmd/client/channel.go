package client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	transports "github.com/luismedel/quiu/internal/cmd/client/transports"
)

// NewChannelCommand constructs the `channel` command group and subcommands.
func NewChannelCommand(baseURL BaseURLFunc) *cobra.Command {
	channelCmd := &cobra.Command{Use: "channel", Short: "Channel operations"}

	channelCmd.AddCommand(
		newChannelCreateCommand(baseURL),
		newChannelDropCommand(baseURL),
		newChannelListCommand(baseURL),
		newChannelAppendCommand(baseURL),
		newChannelFetchCommand(baseURL),
		newChannelRangeCommand(baseURL),
	)
	return channelCmd
}

// newChannelCreateCommand constructs the `channel create` subcommand.
func newChannelCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a channel (idempotent for an existing GUID)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			guid, _ := cmd.Flags().GetString("guid")
			name, _ := cmd.Flags().GetString("name")
			id, err := getTransport(baseURL).Create(cmd.Context(), guid, name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	createCmd.Flags().String("guid", "", "Channel GUID (generated when empty)")
	createCmd.Flags().String("name", "", "Display name")
	return createCmd
}

func newChannelDropCommand(baseURL BaseURLFunc) *cobra.Command {
	dropCmd := &cobra.Command{
		Use:   "drop <guid>",
		Short: "Drop a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prune, _ := cmd.Flags().GetBool("prune")
			if err := getTransport(baseURL).Drop(cmd.Context(), args[0], prune); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	dropCmd.Flags().Bool("prune", false, "Also delete the channel's data on disk")
	return dropCmd
}

func newChannelListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			chs, err := getTransport(baseURL).List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(chs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "GUID\tNAME\tLAST OFFSET")
			for _, ch := range chs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", ch.GUID, ch.Name, ch.LastOffset)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return listCmd
}

// newChannelAppendCommand appends --data values, or stdin when none are given.
func newChannelAppendCommand(baseURL BaseURLFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append <guid>",
		Short: "Append records; each line is one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetStringArray("data")
			file, _ := cmd.Flags().GetString("file")
			noWait, _ := cmd.Flags().GetBool("no-wait")

			var body io.Reader
			switch {
			case len(data) > 0:
				body = strings.NewReader(strings.Join(data, "\n"))
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				body = f
			default:
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = bytes.NewReader(b)
			}

			res, err := getTransport(baseURL).Append(cmd.Context(), args[0], body, noWait)
			if err != nil {
				return err
			}
			status := "OK"
			if res.Pending {
				status = "PENDING"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "status: %s processed: %d commited: %d\n", status, res.Processed, res.Commited)
			return nil
		},
	}
	appendCmd.Flags().StringArray("data", nil, "Record payload (repeatable)")
	appendCmd.Flags().String("file", "", "Read newline-delimited records from a file")
	appendCmd.Flags().Bool("no-wait", false, "Do not wait for records to be committed")
	return appendCmd
}

func newChannelFetchCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <guid> <offset>",
		Short: "Fetch one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid offset %q", args[1])
			}
			rec, err := getTransport(baseURL).Fetch(cmd.Context(), args[0], offset)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(decodedRecord(rec))
		},
	}
}

func newChannelRangeCommand(baseURL BaseURLFunc) *cobra.Command {
	rangeCmd := &cobra.Command{
		Use:   "range <guid> <offset> <count>",
		Short: "Fetch up to count contiguous records",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid offset %q", args[1])
			}
			count, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid count %q", args[2])
			}
			filter, _ := cmd.Flags().GetString("filter")

			enc := json.NewEncoder(cmd.OutOrStdout())
			return getTransport(baseURL).FetchRange(cmd.Context(), transports.RangeRequest{
				GUID:   args[0],
				Offset: offset,
				Count:  count,
				Filter: filter,
			}, func(rec transports.Record) error {
				return enc.Encode(decodedRecord(rec))
			})
		},
	}
	rangeCmd.Flags().String("filter", "", "CEL filter (server-side)")
	return rangeCmd
}
