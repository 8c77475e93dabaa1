// Package quote holds the offline quote command
package quote

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/fxquote/cmd/env"
	"github.com/sig-0/fxquote/payment"
	quotepkg "github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/rates"
	"github.com/sig-0/fxquote/server/config"
)

const fetchTimeout = 10 * time.Second

// quoteCfg wraps the quote configuration
type quoteCfg struct {
	margin        *float64
	customRubUsdt *float64

	configPath string
	ratesURL   string
	method     string
	scenario   string
	direction  string

	amount  float64
	usdtThb float64
	rubUsdt float64

	asJSON bool
}

// NewQuoteCmd creates the quote subcommand
func NewQuoteCmd() *ffcli.Command {
	cfg := &quoteCfg{}

	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "quote",
		ShortUsage: "quote [flags]",
		LongHelp:   "Computes a single quote with the local engine",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *quoteCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "the path to the server TOML configuration, for the policy")
	fs.StringVar(&c.ratesURL, "rates-url", "", "the rates service to fetch spot rates from, if any")
	fs.StringVar(&c.method, "method", quotepkg.MethodTrustedPartner.String(), "the quote method (trusted-partner, broker)")
	fs.StringVar(&c.scenario, "scenario", quotepkg.ScenarioRUBToTHB.String(), "the conversion scenario")
	fs.StringVar(&c.direction, "direction", quotepkg.DirectionAmount.String(), "the amount direction (amount, target)")
	fs.Float64Var(&c.amount, "amount", 0, "the quoted amount")
	fs.Float64Var(&c.usdtThb, "usdt-thb", rates.DefaultUsdtThb, "the USDT/THB spot rate")
	fs.Float64Var(&c.rubUsdt, "rub-usdt", rates.DefaultRubUsdt, "the RUB/USDT spot rate")
	fs.BoolVar(&c.asJSON, "json", false, "print the full result as JSON")

	fs.Func("margin", "the margin percent (broker margin, or trusted-partner override)", func(v string) error {
		return parseOptional(v, &c.margin)
	})

	fs.Func("custom-rub-usdt", "the custom RUB/USDT rate, for broker quotes", func(v string) error {
		return parseOptional(v, &c.customRubUsdt)
	})
}

func (c *quoteCfg) exec(ctx context.Context, _ []string) error {
	policy := quotepkg.DefaultPolicy()

	if c.configPath != "" {
		serverCfg, err := config.Read(c.configPath)
		if err != nil {
			return fmt.Errorf("unable to read server config, %w", err)
		}

		if serverCfg.Policy != nil {
			policy = serverCfg.Policy
		}
	}

	req, err := c.request()
	if err != nil {
		return err
	}

	if c.ratesURL != "" {
		fetchCtx, cancelFn := context.WithTimeout(ctx, fetchTimeout)
		defer cancelFn()

		req.Rates, err = rates.NewHTTPSource(c.ratesURL, fetchTimeout).Fetch(fetchCtx)
		if err != nil {
			return fmt.Errorf("unable to fetch rates, %w", err)
		}
	}

	result, err := quotepkg.NewLocal(policy).Calculate(ctx, req)
	if err != nil {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(result.Rounded())
	}

	return printResult(os.Stdout, result.Rounded())
}

// request builds the quote request from the flags
func (c *quoteCfg) request() (*quotepkg.Request, error) {
	method, err := quotepkg.ParseMethod(c.method)
	if err != nil {
		return nil, err
	}

	scenario, err := quotepkg.ParseScenario(c.scenario)
	if err != nil {
		return nil, err
	}

	direction, err := quotepkg.ParseDirection(c.direction)
	if err != nil {
		return nil, err
	}

	return &quotepkg.Request{
		CustomRubUsdt: c.customRubUsdt,
		Margin:        c.margin,
		Method:        method,
		Scenario:      scenario,
		Direction:     direction,
		Amount:        c.amount,
		Rates: quotepkg.Rates{
			UsdtThb: c.usdtThb,
			RubUsdt: c.rubUsdt,
		},
	}, nil
}

// printResult writes a human-readable quote summary
func printResult(w io.Writer, r *quotepkg.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Method\t%s (%s)\n", r.Method, r.Level)
	fmt.Fprintf(tw, "Pay\t%s %s\n", payment.FormatAmount(r.SourceAmount, r.SourceCurrency), r.SourceCurrency)
	fmt.Fprintf(tw, "Receive\t%s %s\n", payment.FormatAmount(r.DestinationAmount, r.DestinationCurrency), r.DestinationCurrency)
	fmt.Fprintf(tw, "Final rate\t%s\n", strconv.FormatFloat(r.FinalRate, 'f', -1, 64))

	for _, leg := range r.Legs {
		fmt.Fprintf(
			tw,
			"Leg %s -> %s\t%s @ %s\n",
			leg.From,
			leg.To,
			payment.FormatAmount(leg.AmountOut, leg.To),
			strconv.FormatFloat(leg.AppliedRate, 'f', -1, 64),
		)
	}

	if wd := r.Withdrawal; wd != nil {
		fmt.Fprintf(tw, "Withdrawal fee\t%s %s\n", payment.FormatAmount(wd.Fee, wd.Currency), wd.Currency)
	}

	if p := r.Profit; p != nil {
		fmt.Fprintf(tw, "Profit\t%s USDT (%s%%)\n", payment.FormatAmount(p.ProfitUSDT, "USDT"), strconv.FormatFloat(p.ProfitPercent, 'f', -1, 64))
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(tw, "Warning\t%s\n", warning)
	}

	return tw.Flush()
}

// parseOptional parses an optional float flag value
func parseOptional(v string, dst **float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", v, err)
	}

	*dst = &f

	return nil
}
