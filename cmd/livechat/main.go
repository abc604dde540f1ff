// Command livechat is a terminal storefront chat widget. One process plays
// one browser tab: it keeps the tab's conversation id and cooldown in a local
// SQLite file, polls the support API for replies and honours operator
// restrictions and closures.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	// Environment wins over .env.
	_ = godotenv.Load()

	app := newCLIApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "livechat:", err)
		os.Exit(1)
	}
}
