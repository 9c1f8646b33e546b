// Command evmkit is a command line client for EVM accounts, keystores, ABI
// data and transactions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
