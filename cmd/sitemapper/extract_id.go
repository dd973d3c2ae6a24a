package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/infrastructure/inventory/drive"
)

func newExtractIDCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-id <url>",
		Short: "Print the Drive file id of a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, ok := drive.ExtractFileID(args[0])
			if !ok {
				return domain.WrapError(domain.ErrInvalidInput, "extract id", fmt.Errorf("no file id in %q", args[0]))
			}
			_, err := fmt.Fprintln(stdout, id)
			return err
		},
	}
}
