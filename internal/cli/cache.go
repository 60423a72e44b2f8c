package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and edit the durable cache",
}

var cacheSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value; valid JSON is stored as-is, anything else as a string",
	Args:  cobra.ExactArgs(2),
	Run:   runCacheSet,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the value stored under a key",
	Args:  cobra.ExactArgs(1),
	Run:   runCacheGet,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Remove a key from both cache tiers",
	Args:  cobra.ExactArgs(1),
	Run:   runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheSetCmd, cacheGetCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheSet(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	app := newOneShotAgent(ctx, cfg, false)
	defer stopAgent(app)

	var payload any = args[1]
	if json.Valid([]byte(args[1])) {
		payload = json.RawMessage(args[1])
	}
	app.Helper().SetDurable(ctx, args[0], payload)

	fmt.Printf("Stored %s\n", args[0])
}

func runCacheGet(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	app := newOneShotAgent(ctx, cfg, false)
	defer stopAgent(app)

	var v json.RawMessage
	if !app.Helper().GetDurable(ctx, args[0], &v) {
		fmt.Fprintf(os.Stderr, "%s: not found\n", args[0])
		stopAgent(app)
		os.Exit(1)
	}
	fmt.Println(string(v))
}

func runCacheClear(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	app := newOneShotAgent(ctx, cfg, false)
	defer stopAgent(app)

	app.Helper().ClearDurable(ctx, args[0])
	fmt.Printf("Cleared %s\n", args[0])
}
