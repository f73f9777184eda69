// Command evtools records vehicle and solar data and posts daily summaries. It is meant to be run
// from cron.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
)

func main() {
	_ = flag.Set("logtostderr", "true")
	err := newRootCmd().Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
