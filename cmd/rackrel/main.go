package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "rackrel",
	Short: "Monte Carlo reliability estimator for erasure-coded storage clusters",
	Long: `rackrel estimates the probability of data loss, normalized magnitude of
data loss, blocked-repair ratio, and single-chunk repair ratio of a
rack-organized, erasure-coded (RS/LRC/DRC) distributed storage cluster via
discrete-event Monte Carlo simulation.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rackrel.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

// exitConfigError and exitInternalError distinguish spec.md §7's error
// classes at the process boundary: configuration problems exit 2 before
// any iteration starts, everything else exits 1.
const (
	exitOK             = 0
	exitInternalError  = 1
	exitConfigError    = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if ce, ok := err.(*configError); ok {
			_ = ce
			os.Exit(exitConfigError)
		}
		os.Exit(exitInternalError)
	}
}

// configError marks an error as a misconfiguration, mapped to exit code 2
// rather than the generic internal-error exit code 1.
type configError struct{ err error }

func (c *configError) Error() string { return c.err.Error() }
func (c *configError) Unwrap() error { return c.err }

func newConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}
