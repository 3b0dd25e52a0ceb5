// Package logging holds the logrus setup shared by the approver binary.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// fieldPriority orders the leading fields of a line; other fields follow alphabetically.
var fieldPriority = map[string]int{
	"time":     1,
	"level":    2,
	"msg":      3,
	"flow_id":  4,
	"chain_id": 5,
	"state":    6,
	"tx_hash":  7,
	"token":    8,
	"router":   9,
	"error":    10,
}

// highlighted fields are printed in green.
var highlighted = map[string]bool{
	"flow_id": true,
	"tx_hash": true,
	"router":  true,
	"error":   true,
}

// ColoredJSONFormatter prints one colored line per entry: time, level, message,
// then key=value pairs with JSON-encoded values.
type ColoredJSONFormatter struct {
	// Include timestamp in the output
	TimestampFormat string
	// Customize field sorting
	SortingFunc func([]string) []string
	// Disable colors when not in terminal
	DisableColors bool
}

func NewColoredJSONFormatter() *ColoredJSONFormatter {
	return &ColoredJSONFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     defaultFieldSorting,
	}
}

func (f *ColoredJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "time" || k == "level" || k == "msg" {
			continue
		}
		keys = append(keys, k)
	}

	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	levelColor := f.paint(levelAttribute(entry.Level))
	timeColor := f.paint(color.FgYellow)
	keyColor := f.paint(color.FgCyan)
	importantColor := f.paint(color.FgGreen)
	valueColor := f.paint(color.FgWhite)

	fmt.Fprintf(b, "%s ", timeColor.Sprint(entry.Time.Format(f.TimestampFormat)))
	fmt.Fprintf(b, "%s ", levelColor.Sprintf("%-7s", strings.ToUpper(entry.Level.String())))
	b.WriteString(levelColor.Sprint(entry.Message))
	b.WriteString(" ")

	for _, k := range keys {
		kc := keyColor
		if highlighted[k] {
			kc = importantColor
		}
		b.WriteString(kc.Sprintf("%s=", k))
		b.WriteString(valueColor.Sprint(formatValue(entry.Data[k])))
		b.WriteString(" ")
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *ColoredJSONFormatter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if f.DisableColors {
		c.DisableColor()
	}
	return c
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

func levelAttribute(level logrus.Level) color.Attribute {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return color.FgBlue
	case logrus.InfoLevel:
		return color.FgGreen
	case logrus.WarnLevel:
		return color.FgYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return color.FgRed
	default:
		return color.FgWhite
	}
}

func defaultFieldSorting(keys []string) []string {
	sort.Slice(keys, func(i, j int) bool {
		iPriority := fieldPriority[keys[i]]
		jPriority := fieldPriority[keys[j]]
		if iPriority != 0 && jPriority != 0 {
			return iPriority < jPriority
		}
		if iPriority != 0 {
			return true
		}
		if jPriority != 0 {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
