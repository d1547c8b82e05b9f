package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dundee/rudu/pkg/cache"
	"github.com/dundee/rudu/pkg/scan"
)

// writePlain renders tab-separated columns to w: size, kind, [owner],
// [inodes], path. This is the default terminal rendering when --output is
// absent.
func writePlain(w io.Writer, result *scan.Result, opts scan.Options) error {
	for _, e := range result.Entries {
		kind := "f"
		if e.Kind == cache.KindDirectory {
			kind = "d"
		}
		cols := []string{strconv.FormatInt(e.Size, 10), kind}
		if opts.ShowOwner {
			cols = append(cols, e.Owner)
		}
		if opts.ShowInodes {
			if e.Inodes != nil {
				cols = append(cols, strconv.Itoa(*e.Inodes))
			} else {
				cols = append(cols, "")
			}
		}
		cols = append(cols, e.Path)

		for i, c := range cols {
			if i > 0 {
				if _, err := fmt.Fprint(w, "\t"); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprint(w, c); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV renders the result to path as CSV.
func writeCSV(path string, result *scan.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening --output destination: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write([]string{"size", "kind", "owner", "inodes", "path"}); err != nil {
		return err
	}
	for _, e := range result.Entries {
		kind := "f"
		if e.Kind == cache.KindDirectory {
			kind = "d"
		}
		inodes := ""
		if e.Inodes != nil {
			inodes = strconv.Itoa(*e.Inodes)
		}
		row := []string{strconv.FormatInt(e.Size, 10), kind, e.Owner, inodes, e.Path}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
