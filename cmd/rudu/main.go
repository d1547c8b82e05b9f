// Command rudu reports allocated disk usage per directory entry, with
// optional owner and inode-count columns, exclude patterns, an incremental
// on-disk cache, and a cooperative memory limit.
package main

import (
	"github.com/dundee/rudu/cmd/rudu/cli"
)

func main() {
	cli.Execute()
}
