package backtest

import (
	"bytes"
	"text/template"

	"quantsim/metrics"
)

var reportFuncs = template.FuncMap{
	"pct": func(x float64) float64 { return x * 100 },
	"ratio": func(p *float64) any {
		if p == nil {
			return "n/a"
		}
		return *p
	},
	"ratioPct": func(p *float64) any {
		if p == nil {
			return "n/a"
		}
		return *p * 100
	},
}

const reportTemplate = `# Backtest {{.Result.RunID}}

| | |
|---|---|
| Strategy | {{.Result.StrategyName}} |
| Symbols | {{range .Result.Symbols}}{{.}} {{end}}|
| Period | {{.Result.StartDate.Format "2006-01-02"}} to {{.Result.EndDate.Format "2006-01-02"}} |
| Initial capital | {{printf "%.2f" .Result.InitialCapital}} |
| Final capital | {{printf "%.2f" .Result.FinalCapital}} |
| Total return | {{printf "%.2f%%" (pct .Result.TotalReturn)}} |

## Performance

| Metric | Value |
|---|---|
| Annualized return | {{printf "%.2f%%" (pct .Summary.AnnualizedReturn)}} |
| Sharpe ratio | {{ratio .Summary.SharpeRatio}} |
| Sortino ratio | {{ratio .Summary.SortinoRatio}} |
| Max drawdown | {{printf "%.2f%%" (pct .Summary.MaxDrawdown)}} |
| Win rate | {{ratioPct .Summary.WinRate}} |
| Profit factor | {{ratio .Summary.ProfitFactor}} |

## Activity

| | |
|---|---|
| Trades | {{.Result.TotalTrades}} |
| Signals generated | {{.Result.SignalsGenerated}} |
| Signals skipped | {{len .Result.SkippedSignals}} |
| Forced liquidations | {{.Result.ForcedLiquidations}} |
| Margin used (final) | {{printf "%.2f" .Result.MarginStats.MarginUsed}} |
| Margin available (final) | {{printf "%.2f" .Result.MarginStats.MarginAvailable}} |
{{- if .Result.SkippedSignals}}

## Skipped signals

| Date | Symbol | Action | Reason |
|---|---|---|---|
{{- range .Result.SkippedSignals}}
| {{.Time.Format "2006-01-02"}} | {{.Symbol}} | {{.Action}} | {{.Reason}} |
{{- end}}
{{- end}}
`

// Report renders a markdown summary of the result with its computed
// performance metrics.
func Report(res *Result, riskFreeAnnual float64) (string, error) {
	t, err := template.New("report").Funcs(reportFuncs).Parse(reportTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Result  *Result
		Summary metrics.Summary
	}{res, res.Summary(riskFreeAnnual)}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
