package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/jsontree"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// InvalidDate is the value a date field carries when its source could not
// be parsed.
const InvalidDate = "Invalid Date"

// maxEpochMillis bounds instants to the range an ECMAScript Date can hold,
// which is what the XSOAR API accepts.
const maxEpochMillis = 8.64e15

// DateResult is the outcome of TransformDate.
type DateResult struct {
	// Value is an ISO-8601 instant in model.DateLayout, or InvalidDate.
	Value string
	Valid bool
}

// TransformDate converts a resolved source value into a normalized UTC
// instant. Numbers are epoch values in cfg.Precision units per second;
// strings are parsed automatically or with cfg.Formatter. An unset
// resolution leaves previous unchanged.
func TransformDate(res jsontree.Resolution, cfg model.DateConfig, previous string) DateResult {
	if res.Unset {
		return DateResult{Value: previous, Valid: previous != "" && previous != InvalidDate}
	}
	t, err := parseDate(res.Value, cfg)
	if err != nil {
		return DateResult{Value: InvalidDate}
	}
	if cfg.UTCOffsetEnabled {
		t = t.Add(time.Duration(cfg.UTCOffset * float64(time.Hour)))
	}
	if !inRange(t) {
		return DateResult{Value: InvalidDate}
	}
	return DateResult{Value: t.UTC().Format(model.DateLayout), Valid: true}
}

// NormalizeDate parses a manually entered date with automatic recognition.
func NormalizeDate(v jsonval.Value) DateResult {
	return TransformDate(jsontree.Resolution{Value: v}, model.DefaultDateConfig(), "")
}

func parseDate(v jsonval.Value, cfg model.DateConfig) (time.Time, error) {
	switch v.Kind() {
	case jsonval.Number:
		return fromEpoch(v.Number(), cfg.Precision)
	case jsonval.String:
		s := strings.TrimSpace(v.Str())
		if s == "" {
			return time.Time{}, fmt.Errorf("empty date")
		}
		if cfg.AutoParse || cfg.Formatter == "" {
			return dateparse.ParseIn(s, time.UTC)
		}
		return parseWithFormat(s, cfg.Formatter)
	}
	return time.Time{}, fmt.Errorf("%s is not a date", v.Kind())
}

func fromEpoch(n float64, precision int64) (time.Time, error) {
	if precision <= 0 {
		precision = model.PrecisionSeconds
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("epoch %v is not finite", n)
	}
	sec := n / float64(precision)
	if math.Abs(sec*1000) > maxEpochMillis {
		return time.Time{}, fmt.Errorf("epoch %v out of range", n)
	}
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		i := int64(n)
		return time.Unix(i/precision, (i%precision)*(int64(time.Second)/precision)).UTC(), nil
	}
	whole := math.Floor(sec)
	micros := math.Round((sec - whole) * 1e6)
	return time.Unix(int64(whole), int64(micros)*int64(time.Microsecond)).UTC(), nil
}

func inRange(t time.Time) bool {
	ms := float64(t.UnixMilli())
	if math.Abs(ms) > maxEpochMillis {
		return false
	}
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

func parseWithFormat(s, format string) (time.Time, error) {
	switch format {
	case "X":
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return fromEpoch(n, model.PrecisionSeconds)
	case "x":
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return fromEpoch(n, model.PrecisionMilliseconds)
	}
	layout, err := goLayout(format)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(layout, s, time.UTC)
}

// formatTokens maps day.js format tokens to Go reference-time layout
// elements, longest token first.
var formatTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"SSS", "000"},
	{"ZZ", "Z0700"},
	{"Z", "Z07:00"},
	{"A", "PM"},
	{"a", "pm"},
}

// goLayout translates a day.js format string into a Go time layout. Text
// inside square brackets is literal.
func goLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated literal in %q", format)
			}
			lit := format[i+1 : i+end]
			if err := checkLiteral(lit); err != nil {
				return "", err
			}
			b.WriteString(lit)
			i += end + 1
			continue
		}
		matched := false
		for _, ft := range formatTokens {
			if !strings.HasPrefix(format[i:], ft.token) {
				continue
			}
			if ft.token == "SSS" {
				out := b.String()
				if out == "" || (out[len(out)-1] != '.' && out[len(out)-1] != ',') {
					return "", fmt.Errorf("fractional seconds must follow '.' or ',' in %q", format)
				}
			}
			b.WriteString(ft.layout)
			i += len(ft.token)
			matched = true
			break
		}
		if matched {
			continue
		}
		if err := checkLiteral(format[i : i+1]); err != nil {
			return "", err
		}
		b.WriteByte(format[i])
		i++
	}
	return b.String(), nil
}

// checkLiteral rejects literal text that Go would read as a layout element.
func checkLiteral(lit string) error {
	if strings.ContainsAny(lit, "0123456789") {
		return fmt.Errorf("literal %q contains digits", lit)
	}
	for _, word := range []string{"Jan", "Mon", "MST", "PM", "pm"} {
		if strings.Contains(lit, word) {
			return fmt.Errorf("literal %q contains %q", lit, word)
		}
	}
	return nil
}
