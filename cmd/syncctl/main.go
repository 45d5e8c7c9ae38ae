// Command syncctl is a CLI client for the connector's admin API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `syncctl - control a running pumpsync connector

Usage:
  syncctl [-addr URL] <command>

Commands:
  sync      trigger a sync cycle and print the resulting status
  status    print the connector's current status
  health    check connector liveness
  version   print client version

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	addr := flag.String("addr", "http://localhost:8720", "connector admin address")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c := &adminClient{base: strings.TrimRight(*addr, "/"), http: &http.Client{}}

	switch cmd := flag.Arg(0); cmd {
	case "version":
		fmt.Printf("syncctl %s (%s)\n", version, buildDate)
	case "sync":
		run(c.call(ctx, http.MethodPost, "/v1/sync"))
	case "status":
		run(c.call(ctx, http.MethodGet, "/v1/status"))
	case "health":
		run(c.call(ctx, http.MethodGet, "/healthz"))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func run(out string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

type adminClient struct {
	base string
	http *http.Client
}

// call performs a request and re-indents the JSON body for the terminal.
func (c *adminClient) call(ctx context.Context, method, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return "", fmt.Errorf("%s", resp.Status)
	}

	var buf strings.Builder
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body), nil
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
