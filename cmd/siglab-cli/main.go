package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"siglab/pkg/siglab"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: siglab-cli [-server URL] <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                 Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies              List strategies supported by the server\n")
		fmt.Fprintf(os.Stderr, "  symbols                 List symbols with stored bars\n")
		fmt.Fprintf(os.Stderr, "  runs [N]                Show the N most recent runs\n")
		fmt.Fprintf(os.Stderr, "  backtest SYMBOL [KIND]  Run a backtest with default parameters\n")
		fmt.Fprintf(os.Stderr, "\n")
	}
	server := flag.String("server", envOr("SIGLAB_SERVER", "http://127.0.0.1:8080"), "siglab-server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	c := siglab.NewClient(*server)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("siglab-cli %s\n", version)

	case "strategies":
		var kinds []string
		if kinds, err = c.Strategies(ctx); err == nil {
			fmt.Println(strings.Join(kinds, "\n"))
		}

	case "symbols":
		var symbols []string
		if symbols, err = c.Symbols(ctx); err == nil {
			fmt.Println(strings.Join(symbols, "\n"))
		}

	case "runs":
		limit := 20
		if len(args) > 1 {
			if _, err := fmt.Sscan(args[1], &limit); err != nil {
				fmt.Fprintf(os.Stderr, "invalid count %q\n", args[1])
				os.Exit(1)
			}
		}
		var runs []siglab.Run
		if runs, err = c.Runs(ctx, limit); err == nil {
			for _, r := range runs {
				fmt.Printf("%5d  %-6s %-9s %4d bars  ret=%+.4f  sharpe=%.3f  %s\n",
					r.ID, r.Symbol, r.Strategy, r.Bars, r.TotalReturn, r.Sharpe, r.CreatedAt.Format(time.DateTime))
			}
		}

	case "backtest":
		if len(args) < 2 {
			flag.Usage()
			os.Exit(1)
		}
		req := siglab.BacktestRequest{Symbol: args[1], Params: siglab.Params{Kind: "sma"}}
		if len(args) > 2 {
			req.Params.Kind = args[2]
		}
		var res *siglab.BacktestResult
		if res, err = c.Backtest(ctx, req); err == nil {
			out, _ := json.MarshalIndent(struct {
				Symbol   string         `json:"symbol"`
				Strategy string         `json:"strategy"`
				Bars     int            `json:"bars"`
				Metrics  siglab.Metrics `json:"metrics"`
			}{res.Symbol, res.Strategy, len(res.Equity), res.Metrics}, "", "  ")
			fmt.Println(string(out))
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
