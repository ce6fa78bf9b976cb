package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/lilu-red/filebridge/pkg/grant"
	"github.com/lilu-red/filebridge/pkg/host"
	"github.com/lilu-red/filebridge/pkg/mime"
)

// MimeCommand returns the mime command.
func MimeCommand() *cli.Command {
	return &cli.Command{
		Name:      "mime",
		Usage:     "Show the MIME type the bridge would use for file names",
		ArgsUsage: "<name>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sniff",
				Usage: "Also detect the type from file content",
			},
		},
		Action: mimeAction,
	}
}

func mimeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one name required", 1)
	}
	sniff := c.Bool("sniff")
	resolver := &host.ContentResolver{}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	header := "NAME\tEXTENSION\tTYPE\tRULE"
	if sniff {
		header += "\tCONTENT"
	}
	fmt.Fprintln(w, header)

	for _, name := range c.Args().Slice() {
		ext := mime.Extension(name)
		mimeType, rule := mime.Match(ext)
		line := fmt.Sprintf("%s\t%s\t%s\t%s", name, ext, mimeType, rule)
		if sniff {
			content := "-"
			if abs, err := filepath.Abs(name); err == nil {
				if t, _ := resolver.TypeOf(c.Context, grant.FileURI(abs)); t != "" {
					content = t
				}
			}
			line += "\t" + content
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
