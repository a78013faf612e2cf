// Command fncall describes the built-in functions to a language model and
// runs the tool calls it makes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/skosovsky/fncall/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
