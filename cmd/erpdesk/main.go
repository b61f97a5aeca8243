package main

import (
	"os"

	"github.com/needha-erp/erpdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
