package main

import (
	"os"

	"github.com/blacktop/postfan/cmd"
	"github.com/blacktop/postfan/internal/logutil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}
