// Command icdcheck validates tabular data files against an Interface
// Control Document (ICD).
//
// Exit codes: 0 when all data rows were accepted and all checks passed,
// 1 when anything was rejected or failed, 2 on usage errors.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/feldlinie/icdcheck"
)

// errRejected marks a validation run that found problems in the data, as
// opposed to a usage error.
var errRejected = errors.New("data was rejected")

// maxReportedErrors bounds how many diagnostics are printed in full.
const maxReportedErrors = 50

var (
	splitFlag    bool
	logLevelFlag string
	headFlag     int
	encodingFlag string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "icdcheck [--split] ICD [DATA]",
		Short:         "validate tabular data against an Interface Control Document",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevelFlag)
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevelFlag)
			}
			logrus.SetLevel(level)
			return nil
		},
		RunE: runValidate,
	}
	rootCmd.Flags().BoolVar(&splitFlag, "split", false, "write accepted and rejected rows to sidecar files")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log", "info", "log level (debug, info, warning, error)")

	sniffCmd := &cobra.Command{
		Use:   "sniff ICD DATA",
		Short: "derive a draft ICD from sample data and write it to ICD",
		Args:  cobra.ExactArgs(2),
		RunE:  runSniff,
	}
	sniffCmd.Flags().IntVar(&headFlag, "head", 0, "number of header rows to skip before analyzing")
	sniffCmd.Flags().StringVar(&encodingFlag, "data-encoding", "ascii", "character encoding of the sample data")
	rootCmd.AddCommand(sniffCmd)

	return rootCmd
}

// logListener reports every event through logrus as validation progresses.
type logListener struct{}

func (logListener) AcceptedRow(row *icdcheck.Row) error {
	logrus.WithField("row", row.Number).Debug("accepted")
	return nil
}

func (logListener) RejectedRow(row *icdcheck.Row, reason error) error {
	logrus.WithField("row", row.Number).Warnf("rejected: %v", reason)
	return nil
}

func (logListener) CheckFailedAtRow(row *icdcheck.Row, reason error) error {
	logrus.WithField("row", row.Number).Warnf("check failed: %v", reason)
	return nil
}

func (logListener) CheckFailedAtEnd(reason error) error {
	logrus.Warnf("check failed at end: %v", reason)
	return nil
}

func (logListener) DataFormatFailed(reason error) error {
	logrus.Errorf("cannot continue: %v", reason)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	icdPath := args[0]
	icd, err := icdcheck.LoadFile(icdPath)
	if err != nil {
		logrus.Errorf("cannot load ICD %q: %v", icdPath, err)
		return errRejected
	}
	logrus.WithFields(logrus.Fields{
		"format": icd.DataFormat().Format(),
		"fields": len(icd.FieldNames()),
		"checks": len(icd.Checks()),
	}).Info("loaded ICD")
	if len(args) < 2 {
		return nil
	}
	dataPath := args[1]

	summary := icdcheck.NewSummary()
	icd.AddListener(summary)
	icd.AddListener(logListener{})
	if splitFlag {
		splitter, err := icdcheck.NewSplitter(dataPath, icd.DataFormat())
		if err != nil {
			return err
		}
		defer func() {
			if err := splitter.Close(); err != nil {
				logrus.Errorf("cannot close sidecar files: %v", err)
			}
		}()
		icd.AddListener(splitter)
		logrus.WithFields(logrus.Fields{
			"accepted": splitter.AcceptedPath(),
			"rejected": splitter.RejectedPath(),
		}).Info("splitting")
	}

	if err := icd.ValidateFile(dataPath); err != nil {
		logrus.Errorf("cannot validate %q: %v", dataPath, err)
		return errRejected
	}
	printSummary(cmd, summary)
	if !summary.Ok() {
		return errRejected
	}
	return nil
}

// printSummary renders the validation outcome as a table plus the first
// diagnostics.
func printSummary(cmd *cobra.Command, summary *icdcheck.Summary) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Outcome", "Rows"})
	table.Append([]string{"accepted", fmt.Sprintf("%d", summary.AcceptedRows)})
	table.Append([]string{"rejected", fmt.Sprintf("%d", summary.RejectedRows)})
	table.Append([]string{"checks failed at end", fmt.Sprintf("%d", summary.CheckFailuresAtEnd)})
	table.Render()

	for i, reportErr := range summary.Errors {
		if i >= maxReportedErrors {
			fmt.Fprintf(cmd.OutOrStdout(), "... and %d more\n", len(summary.Errors)-maxReportedErrors)
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", reportErr)
	}
}

func runSniff(cmd *cobra.Command, args []string) error {
	icdPath, dataPath := args[0], args[1]
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("cannot open data %q: %w", dataPath, err)
	}
	defer func() {
		_ = dataFile.Close()
	}()
	icdFile, err := os.Create(icdPath)
	if err != nil {
		return fmt.Errorf("cannot create ICD %q: %w", icdPath, err)
	}
	defer func() {
		_ = icdFile.Close()
	}()
	if err := icdcheck.WriteSniffedICD(icdFile, dataFile,
		icdcheck.WithSniffHead(headFlag), icdcheck.WithSniffEncoding(encodingFlag)); err != nil {
		return err
	}
	logrus.WithField("icd", icdPath).Info("wrote sniffed ICD")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errRejected) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "icdcheck: %v\n", err)
		os.Exit(2)
	}
}
