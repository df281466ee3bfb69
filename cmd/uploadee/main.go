// Command uploadee uploads a file to upload.ee and prints its download link.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/uploadee/relay/internal/logging"
	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/uploadee"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "uploadee",
		Short:         "Upload files to upload.ee",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newUploadCmd())
	return root
}

type uploadOptions struct {
	timeout time.Duration
	baseURL string
	verbose bool
}

func newUploadCmd() *cobra.Command {
	opts := uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload one file and print its download link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runUpload(cmd, args[0], opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red("Error: "+err.Error()))
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&opts.timeout, "timeout", session.DefaultTimeout, "per-request timeout")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", session.DefaultBaseURL, "upload.ee origin")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every upload step")
	return cmd
}

func runUpload(cmd *cobra.Command, path string, opts uploadOptions) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Output: cmd.ErrOrStderr()})

	if opts.verbose {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fmt.Fprintln(cmd.ErrOrStderr(), gray(fmt.Sprintf("uploading %s (%s)", info.Name(), humanize.IBytes(uint64(info.Size())))))
		}
	}

	start := time.Now()
	link, err := uploadee.UploadFile(cmd.Context(), path, session.Options{
		BaseURL: opts.baseURL,
		Timeout: opts.timeout,
	}, uploadee.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Debug("upload finished", slog.Duration("took", time.Since(start)))
	fmt.Fprintln(cmd.OutOrStdout(), green(link))
	return nil
}
