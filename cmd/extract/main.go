// Command extract pulls email accounts from a running pikpakhelper server,
// retrying with a fixed backoff while the provider has no inventory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pikpakhelper/internal/backend"
	"pikpakhelper/pkg/extractor"
	"pikpakhelper/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	def := extractor.DefaultConfig()
	backendURL := fs.String("backend", "http://127.0.0.1:5000", "pikpakhelper server base URL")
	apiKey := fs.String("key", os.Getenv("MAILSHOP_CARD"), "mailshop card (API key)")
	emailType := fs.String("type", string(extractor.Outlook), "email type: outlook or hotmail")
	count := fs.Int("count", 1, "number of emails to extract (1-2000)")
	backoff := fs.Duration("backoff", def.Policy.Backoff, "wait between retries")
	maxAttempts := fs.Int("max-attempts", 0, "give up after this many attempts (0 = unbounded)")
	maxElapsed := fs.Duration("max-elapsed", 0, "give up after this much time (0 = unbounded)")
	out := fs.String("out", "", "write emails to this file instead of stdout")
	logLevel := fs.String("log-level", "warn", "log level")
	inventory := fs.Bool("inventory", false, "print the provider inventory and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.NewLogger(*logLevel)
	defer log.Sync()

	client := backend.NewClient(*backendURL, 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *inventory {
		return printInventory(ctx, client, stdout, stderr)
	}

	t, err := extractor.ParseEmailType(*emailType)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg := def
	cfg.Policy = extractor.RetryPolicy{Backoff: *backoff, MaxAttempts: *maxAttempts, MaxElapsed: *maxElapsed}
	ctrl := extractor.NewController(client, cfg, log)

	go func() {
		<-ctx.Done()
		if ctrl.Busy() {
			log.Warn("Interrupted, abandoning in-flight extraction")
		}
	}()

	req := extractor.Request{APIKey: *apiKey, EmailType: t, Count: *count}
	start := time.Now()
	res, err := ctrl.Extract(ctx, req, func(r extractor.Retry) {
		fmt.Fprintln(stderr, r.RetryMessage())
	})
	if err != nil {
		return report(stderr, err)
	}

	if err := writeEmails(*out, stdout, res.Emails); err != nil {
		fmt.Fprintln(stderr, "write emails:", err)
		return 1
	}

	ctrl.Wait()
	fmt.Fprintf(stderr, "extracted %d emails after %d retries in %s, balance: %d\n",
		res.Count, res.Retries, time.Since(start).Round(time.Millisecond), ctrl.Balance())
	log.Info("Extraction finished", zap.Int("count", res.Count), zap.Int("retries", res.Retries))
	return 0
}

// printInventory 输出各类型库存，按类型排序
func printInventory(ctx context.Context, client *backend.Client, stdout, stderr io.Writer) int {
	resp, err := client.Inventory(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "check inventory:", err)
		return 1
	}
	if resp.Status != extractor.StatusSuccess {
		fmt.Fprintln(stderr, "check inventory:", resp.Message)
		return 1
	}

	types := make([]string, 0, len(resp.Inventory))
	for k := range resp.Inventory {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		fmt.Fprintf(stdout, "%s: %s\n", k, formatCount(resp.Inventory[k]))
	}
	return 0
}

func formatCount(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func report(stderr io.Writer, err error) int {
	switch {
	case extractor.IsCanceled(err):
		fmt.Fprintln(stderr, "canceled")
		return 130
	case errors.Is(err, extractor.ErrRetryExhausted):
		fmt.Fprintln(stderr, "gave up:", err)
		return 3
	case extractor.IsValidation(err):
		fmt.Fprintln(stderr, "invalid request:", err)
		return 2
	default:
		fmt.Fprintln(stderr, "extraction failed:", err)
		return 1
	}
}

func writeEmails(path string, stdout io.Writer, emails []string) error {
	body := strings.Join(emails, "\n")
	if len(emails) > 0 {
		body += "\n"
	}
	if path == "" {
		_, err := io.WriteString(stdout, body)
		return err
	}
	return os.WriteFile(path, []byte(body), 0o600)
}
