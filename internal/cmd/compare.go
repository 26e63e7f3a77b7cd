package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// comparison is the result of `forceupdate compare`.
type comparison struct {
	A      string `json:"a" yaml:"a"`
	B      string `json:"b" yaml:"b"`
	Result int    `json:"result" yaml:"result"`
}

func (c comparison) String() string {
	op := "=="
	switch c.Result {
	case -1:
		op = "<"
	case 1:
		op = ">"
	}
	return fmt.Sprintf("%s %s %s", c.A, op, c.B)
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare two dotted version strings",
		Long: `Compare orders two version strings the way update checks do: numeric
segments compared left to right, missing trailing segments counted as zero.

Examples:
  forceupdate compare 1.2 1.10        # 1.2 < 1.10
  forceupdate compare 1.2 1.2.0       # 1.2 == 1.2.0
  forceupdate compare -o json 2 1.9   # {"a":"2","b":"1.9","result":1}`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func runCompare(stdout io.Writer, a, b string) error {
	w, err := newWriter(stdout)
	if err != nil {
		return err
	}

	result, err := forceupdate.CompareVersions(a, b)
	if err != nil {
		return err
	}

	return w.Write(comparison{A: a, B: b, Result: result})
}
