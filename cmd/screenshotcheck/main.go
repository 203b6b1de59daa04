// Command screenshotcheck runs the screenshot verifier against local files,
// printing the full audit view (causes and extracted metadata) for each one.
//
// Usage:
//
//	screenshotcheck verify Screenshot_20240501-101500.png --today 2024-05-01
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intesters-backend/internal/verification"
)

var errRejected = errors.New("one or more screenshots failed verification")

type fileReport struct {
	Path   string                          `json:"path"`
	Result verification.VerificationResult `json:"result"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "screenshotcheck",
		Short:         "Check screenshots the way the upload endpoint does",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVerifyCmd())
	return root
}

func newVerifyCmd() *cobra.Command {
	var (
		today     string
		timezone  string
		maxPixels int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "verify [file...]",
		Short: "Verify one or more screenshot files",
		Long: `Reads each file, uses its modification time as the client lastModified
value and prints the verification result as JSON. Exits non-zero when any
file is rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("invalid --tz %q: %w", timezone, err)
			}
			clock, err := fixedClock(today, loc)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
			}
			defer logger.Sync()

			opts := []verification.Option{
				verification.WithClock(clock),
				verification.WithLogger(logger),
			}
			if maxPixels > 0 {
				opts = append(opts, verification.WithMaxPixels(maxPixels))
			}

			err = runVerify(cmd, verification.New(opts...), args)
			if errors.Is(err, errRejected) {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&today, "today", "", "treat this date (YYYY-MM-DD) as today")
	cmd.Flags().StringVar(&timezone, "tz", "Local", "time zone used for same-day checks")
	cmd.Flags().IntVar(&maxPixels, "max-pixels", 0, "decode budget in pixels (0 keeps the default)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log verifier diagnostics to stderr")
	return cmd
}

// fixedClock returns the wall clock, or noon of the given day when one is set.
func fixedClock(day string, loc *time.Location) (func() time.Time, error) {
	if day == "" {
		return func() time.Time { return time.Now().In(loc) }, nil
	}
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --today %q: expected YYYY-MM-DD", day)
	}
	t = t.Add(12 * time.Hour)
	return func() time.Time { return t }, nil
}

func runVerify(cmd *cobra.Command, v *verification.Verifier, paths []string) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	rejected := false
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		result := v.Verify(verification.SubmittedImage{
			Bytes:        data,
			Filename:     filepath.Base(path),
			SizeBytes:    int64(len(data)),
			LastModified: info.ModTime(),
		})
		if !result.IsValid {
			rejected = true
		}

		if err := enc.Encode(fileReport{Path: path, Result: result}); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	if rejected {
		return errRejected
	}
	return nil
}
