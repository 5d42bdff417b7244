package cmd

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/grovetools/linkwatch/cli"
	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the log written by linkwatch watch",
		Long: `Prints today's watch log. With --follow, keeps printing new lines as
they are written, across log rotation.

Examples:
  # Follow the watch log
  linkwatch logs -f

  # Last 20 lines of a specific file
  linkwatch logs --file /tmp/watch.log --tail 20`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("file", "", "Log file to read (default: today's watch log)")
	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "logs")

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = logging.LogFilePath("watch")
	}
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err != nil {
		if !follow {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "no log file").WithDetail("path", path)
		}
		logger.Debugf("Waiting for %s to be created", path)
	} else if err := printLastLines(out, path, tailLines); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				logger.Debugf("Error reading line from %s: %v", path, line.Err)
				continue
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}

// printLastLines writes the last n lines of path to w, or all of them when n < 0.
func printLastLines(w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n >= 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}
