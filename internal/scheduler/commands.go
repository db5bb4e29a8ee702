package scheduler

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"ShopLens/internal/model"
	"ShopLens/internal/notifier"
	"ShopLens/internal/pipeline"
	"ShopLens/internal/report"
)

const defaultTopProducts = 10

const helpText = `Available commands:
• /report
• /segments
• /forecast
• /cohorts
• /products [n]
• /customer &lt;id&gt;
• /run [ref=YYYY-MM-DD bins=N k=N auto_k=true seed=N scores=true granularity=daily|weekly|monthly horizon=N method=holt|holt_winters|moving_average season=N]`

// HandleCommand answers a chat command. /run accepts key=value overrides of
// the configured parameters; the other commands read the latest report.
func (s *Scheduler) HandleCommand(ctx context.Context, cmd notifier.Command) notifier.Message {
	if cmd.Name == "/run" {
		p, err := ApplyOptions(s.Params, cmd.Options)
		if err != nil {
			return failure(err)
		}
		rep, err := s.RunWith(ctx, p)
		if err != nil {
			return failure(err)
		}
		return notifier.HTML(report.FormatSummary(rep))
	}

	switch cmd.Name {
	case "/report", "/segments", "/forecast", "/cohorts", "/products", "/customer":
	default:
		return notifier.HTML(helpText)
	}
	rep := s.Latest()
	if rep == nil {
		return notifier.HTML("No report yet. Send /run to compute one.")
	}

	switch cmd.Name {
	case "/segments":
		return notifier.HTML(report.FormatSegments(rep))
	case "/forecast":
		return notifier.HTML(report.FormatForecast(rep))
	case "/cohorts":
		return notifier.HTML(report.FormatCohorts(rep))
	case "/products":
		n := defaultTopProducts
		if len(cmd.Args) > 0 {
			v, err := strconv.Atoi(cmd.Args[0])
			if err != nil || v < 1 {
				return notifier.HTML("Usage: /products [n], n a positive integer")
			}
			n = v
		}
		return notifier.HTML(report.FormatProducts(rep, n))
	case "/customer":
		if len(cmd.Args) != 1 {
			return notifier.HTML("Usage: /customer &lt;id&gt;")
		}
		v, ok := rep.Customer(cmd.Args[0])
		if !ok {
			return notifier.HTML(fmt.Sprintf("Customer %s not found.", html.EscapeString(cmd.Args[0])))
		}
		return notifier.HTML(report.FormatCustomer(v))
	}
	return notifier.HTML(report.FormatSummary(rep))
}

func failure(err error) notifier.Message {
	return notifier.HTML("❌ Analysis failed: " + html.EscapeString(err.Error()))
}

// ApplyOptions overrides base with key=value options from a chat command.
// Values are parsed here and range-checked by the analysis stages.
func ApplyOptions(base pipeline.Params, opts map[string]string) (pipeline.Params, error) {
	p := base
	p.Segment.Names = append([]string(nil), base.Segment.Names...)

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := opts[k]
		var err error
		switch k {
		case "ref", "reference_date":
			p.ReferenceDate, err = time.Parse("2006-01-02", v)
		case "bins":
			p.RFM.Bins, err = strconv.Atoi(v)
		case "k":
			p.Segment.K, err = strconv.Atoi(v)
		case "auto_k":
			p.Segment.AutoK, err = strconv.ParseBool(v)
		case "seed":
			p.Segment.Seed, err = strconv.ParseInt(v, 10, 64)
		case "scores", "use_scores":
			p.Segment.UseScores, err = strconv.ParseBool(v)
		case "granularity":
			p.Forecast.Granularity = model.Granularity(strings.ToLower(v))
		case "horizon":
			p.Forecast.Horizon, err = strconv.Atoi(v)
		case "method":
			p.Forecast.Method = strings.ToLower(v)
		case "season", "season_length":
			p.Forecast.SeasonLength, err = strconv.Atoi(v)
		default:
			return base, fmt.Errorf("%w: unknown option %q", model.ErrInvalidParameter, k)
		}
		if err != nil {
			return base, fmt.Errorf("%w: option %s=%q: %v", model.ErrInvalidParameter, k, v, err)
		}
	}
	return p, nil
}
