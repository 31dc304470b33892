package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// printResult writes v to the command's stdout in the --format format.
func printResult(cmd *cobra.Command, v interface{}) error {
	format, err := parseFormat(formatFlag)
	if err != nil {
		return err
	}
	out, err := FormatResponse(v, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
