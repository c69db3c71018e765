package dataflows

import (
	"fmt"
	"sort"
	"strings"

	"github.com/markcheno/go-talib"

	"github.com/dyike/CortexAgents/models"
)

// Indicators holds the latest value of each indicator with enough history.
type Indicators map[string]float64

// ComputeIndicators runs the TA-Lib set over bars in chronological order.
func ComputeIndicators(bars []models.Bar) Indicators {
	n := len(bars)
	out := Indicators{}
	if n == 0 {
		return out
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
	}
	out["close"] = closes[n-1]

	last := func(series []float64) float64 { return series[len(series)-1] }

	for _, p := range []int{50, 200} {
		if n >= p {
			out[fmt.Sprintf("sma_%d", p)] = last(talib.Sma(closes, p))
		}
	}
	if n >= 10 {
		out["ema_10"] = last(talib.Ema(closes, 10))
	}
	if n > 14 {
		out["rsi_14"] = last(talib.Rsi(closes, 14))
		out["atr_14"] = last(talib.Atr(highs, lows, closes, 14))
	}
	if n >= 34 {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		out["macd"] = last(macd)
		out["macd_signal"] = last(signal)
		out["macd_hist"] = last(hist)
	}
	if n >= 20 {
		upper, middle, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
		out["boll_upper"] = last(upper)
		out["boll_middle"] = last(middle)
		out["boll_lower"] = last(lower)
	}
	return out
}

func (ind Indicators) String() string {
	keys := make([]string, 0, len(ind))
	for k := range ind {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %.4f\n", k, ind[k])
	}
	return b.String()
}

// FormatBars renders the last n bars as CSV for a prompt.
func FormatBars(bars []models.Bar, n int) string {
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	for _, bar := range bars {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%d\n",
			bar.Time.Format("2006-01-02"),
			bar.Open.StringFixed(2), bar.High.StringFixed(2), bar.Low.StringFixed(2), bar.Close.StringFixed(2),
			bar.Volume)
	}
	return b.String()
}
