package logger

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const tmFmtWithMS = "2006-01-02 15:04:05.999"

func isPrintable(s []byte) bool {
	for _, r := range s {
		if !unicode.IsPrint(rune(r)) {
			return false
		}
	}
	return true
}

// ExplainSQL renders vars into sql for logging, placeholders are either `?` or matched by
// numericPlaceholder whose first group is the 1-based binding index
func ExplainSQL(sql string, numericPlaceholder *regexp.Regexp, escaper string, vars ...interface{}) string {
	rendered := make([]string, len(vars))
	for idx, v := range vars {
		rendered[idx] = explainValue(v, escaper)
	}

	if numericPlaceholder == nil {
		var (
			buf strings.Builder
			n   int
		)
		for _, c := range []byte(sql) {
			if c == '?' && n < len(rendered) {
				buf.WriteString(rendered[n])
				n++
				continue
			}
			buf.WriteByte(c)
		}
		return buf.String()
	}

	return numericPlaceholder.ReplaceAllStringFunc(sql, func(m string) string {
		groups := numericPlaceholder.FindStringSubmatch(m)
		if len(groups) < 2 {
			return m
		}
		if n, err := strconv.Atoi(groups[1]); err == nil && n >= 1 && n <= len(rendered) {
			return rendered[n-1]
		}
		return m
	})
}

func explainValue(v interface{}, escaper string) string {
	quote := func(s string) string {
		return escaper + strings.ReplaceAll(s, escaper, "\\"+escaper) + escaper
	}

	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "NULL"
		}
		v, _ = valuer.Value()
	}

	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.IsZero() {
			return escaper + "0000-00-00 00:00:00" + escaper
		}
		return escaper + v.Format(tmFmtWithMS) + escaper
	case *time.Time:
		if v == nil {
			return "NULL"
		}
		return explainValue(*v, escaper)
	case []byte:
		if isPrintable(v) {
			return quote(string(v))
		}
		return escaper + "<binary>" + escaper
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 6, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', 6, 64)
	case string:
		return quote(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "NULL"
		}
		return explainValue(rv.Elem().Interface(), escaper)
	case reflect.String:
		return quote(rv.String())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return explainValue(rv.Bytes(), escaper)
		}
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return quote(fmt.Sprint(v))
}
