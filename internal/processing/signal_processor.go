package processing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dyike/CortexAgents/models"
)

var ErrNoJSON = errors.New("no JSON object in reply")

// SignalProcessor extracts structured signals from free-form agent replies.
type SignalProcessor struct {
	proposal     *regexp.Regexp
	confidence   *regexp.Regexp
	fence        *regexp.Regexp
	buyPatterns  []*regexp.Regexp
	sellPatterns []*regexp.Regexp
	holdPatterns []*regexp.Regexp
}

func NewSignalProcessor() *SignalProcessor {
	return &SignalProcessor{
		proposal:   regexp.MustCompile(`(?i)FINAL\s+TRANSACTION\s+PROPOSAL\s*:\s*\**\s*(BUY|SELL|HOLD)\b`),
		confidence: regexp.MustCompile(`(?i)confidence\W{0,5}(\d{1,3}(?:\.\d+)?)\s*(%?)`),
		fence:      regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```"),
		buyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(buy|long|bullish|accumulate|upside)\b`),
			regexp.MustCompile(`(?i)\b(undervalued|oversold|breakout)\b`),
		},
		sellPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(sell|short|bearish|exit|downside)\b`),
			regexp.MustCompile(`(?i)\b(overvalued|overbought|breakdown)\b`),
		},
		holdPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(hold|neutral|wait|sideways)\b`),
			regexp.MustCompile(`(?i)\b(no action|stay put|keep position)\b`),
		},
	}
}

// ExtractAction reads the FINAL TRANSACTION PROPOSAL line. The last match wins.
func (sp *SignalProcessor) ExtractAction(text string) (models.Action, bool) {
	matches := sp.proposal.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return models.ParseAction(matches[len(matches)-1][1])
}

// ExtractConfidence reads "Confidence: 72%" or "confidence 0.72" as a 0..1 value.
func (sp *SignalProcessor) ExtractConfidence(text string) (float64, bool) {
	m := sp.confidence.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "%" || v > 1 {
		v /= 100
	}
	return Clamp01(v), true
}

// InferAction scores bullish, bearish and neutral vocabulary. Ties resolve to HOLD.
func (sp *SignalProcessor) InferAction(text string) models.Action {
	count := func(patterns []*regexp.Regexp) int {
		n := 0
		for _, p := range patterns {
			n += len(p.FindAllString(text, -1))
		}
		return n
	}
	buy, sell, hold := count(sp.buyPatterns), count(sp.sellPatterns), count(sp.holdPatterns)
	switch {
	case buy > sell && buy > hold:
		return models.ActionBuy
	case sell > buy && sell > hold:
		return models.ActionSell
	}
	return models.ActionHold
}

// ExtractJSON returns the first JSON object in text, looking inside code
// fences first.
func (sp *SignalProcessor) ExtractJSON(text string) (string, error) {
	candidates := make([]string, 0, 2)
	for _, m := range sp.fence.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		start := strings.Index(c, "{")
		end := strings.LastIndex(c, "}")
		if start < 0 || end <= start {
			continue
		}
		obj := c[start : end+1]
		if gjson.Valid(obj) {
			return obj, nil
		}
	}
	return "", ErrNoJSON
}

// ParseConvergence accepts only an explicit boolean true.
func (sp *SignalProcessor) ParseConvergence(text string) (bool, string, error) {
	obj, err := sp.ExtractJSON(text)
	if err != nil {
		return false, "", err
	}
	doc := gjson.Parse(obj)
	converged := doc.Get("converged")
	if !converged.Exists() {
		return false, "", fmt.Errorf("convergence reply missing \"converged\"")
	}
	return converged.Type == gjson.True, doc.Get("reason").String(), nil
}

// Stance is the common shape of moderator and risk manager replies.
type Stance struct {
	Action     models.Action
	Confidence float64
	Rationale  string
	// Structured is false when the reply carried no usable JSON and the
	// fields were inferred from prose.
	Structured bool
}

// ParseStance reads {"stance","confidence","rationale"}. Prose replies fall
// back to the proposal line, then vocabulary scoring, with confidence 0.5.
func (sp *SignalProcessor) ParseStance(text string) Stance {
	if obj, err := sp.ExtractJSON(text); err == nil {
		doc := gjson.Parse(obj)
		if action, ok := models.ParseAction(doc.Get("stance").String()); ok {
			conf := doc.Get("confidence").Float()
			if conf > 1 {
				conf /= 100
			}
			rationale := strings.TrimSpace(doc.Get("rationale").String())
			if rationale == "" {
				rationale = strings.TrimSpace(text)
			}
			return Stance{Action: action, Confidence: Clamp01(conf), Rationale: rationale, Structured: true}
		}
	}

	action, ok := sp.ExtractAction(text)
	if !ok {
		action = sp.InferAction(text)
	}
	conf, ok := sp.ExtractConfidence(text)
	if !ok {
		conf = 0.5
	}
	return Stance{Action: action, Confidence: conf, Rationale: strings.TrimSpace(text)}
}

func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
