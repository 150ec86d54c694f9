package utils

import (
	"database/sql/driver"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var recordSourceDir string

func init() {
	_, file, _, _ := runtime.Caller(0)
	// compatible solution to get the module source directory with various operating systems
	recordSourceDir = sourceDir(file)
}

func sourceDir(file string) string {
	dir := filepath.Dir(file)
	dir = filepath.Dir(dir)

	s := filepath.Dir(dir)
	if filepath.Base(s) != "gorm.io" {
		s = dir
	}
	return filepath.ToSlash(s) + "/"
}

// FileWithLineNum return the file name and line number of the first caller outside this module
func FileWithLineNum() string {
	frame := CallerFrame()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.FormatInt(int64(frame.Line), 10)
}

// CallerFrame returns the first caller frame outside this module, test files excepted
func CallerFrame() runtime.Frame {
	pcs := [13]uintptr{}
	length := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:length])
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		if !strings.HasPrefix(frame.File, recordSourceDir) || strings.HasSuffix(frame.File, "_test.go") {
			return frame
		}
	}
	return runtime.Frame{}
}

// IsValidDBNameChar reports whether c separates identifiers
func IsValidDBNameChar(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsNumber(c) && c != '.' && c != '*' && c != '_' && c != '$' && c != '@'
}

// ToStringKey builds an identity key used to match rows across result sets,
// so that int64(1), 1 and "1" land in the same bucket.
func ToStringKey(values ...interface{}) string {
	results := make([]string, len(values))

	for idx, value := range values {
		if valuer, ok := value.(driver.Valuer); ok {
			value, _ = valuer.Value()
		}

		switch v := value.(type) {
		case string:
			results[idx] = v
		case []byte:
			results[idx] = string(v)
		case nil:
			results[idx] = ""
		case float32:
			results[idx] = strconv.FormatFloat(float64(v), 'f', -1, 32)
		case float64:
			results[idx] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			if s := ToString(v); s != "" {
				results[idx] = s
			} else {
				results[idx] = fmt.Sprint(reflect.Indirect(reflect.ValueOf(v)).Interface())
			}
		}
	}

	return strings.Join(results, "_")
}

// Contains reports whether elem is in elems
func Contains(elems []string, elem string) bool {
	for _, e := range elems {
		if elem == e {
			return true
		}
	}
	return false
}

// AssertEqual compares two values, unwrapping driver.Valuer
func AssertEqual(src, dst interface{}) bool {
	if !reflect.DeepEqual(src, dst) {
		if valuer, ok := src.(driver.Valuer); ok {
			src, _ = valuer.Value()
		}

		if valuer, ok := dst.(driver.Valuer); ok {
			dst, _ = valuer.Value()
		}

		return reflect.DeepEqual(src, dst)
	}
	return true
}

// ToString formats integer kinds, returns "" for anything else
func ToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return ""
}

// ToFloat converts numbers and numeric strings, ok is false for anything else
func ToFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case []byte:
		return ToFloat(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// IsNumeric reports whether value is a finite number or a numeric string
func IsNumeric(value interface{}) bool {
	f, ok := ToFloat(value)
	return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// UniqueKeys removes nil and duplicated values (by identity key) and sorts the rest,
// numbers numerically and everything else lexically
func UniqueKeys(values []interface{}) []interface{} {
	var (
		seen   = map[string]bool{}
		result = make([]interface{}, 0, len(values))
	)

	for _, v := range values {
		if v == nil {
			continue
		}
		key := ToStringKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, v)
	}

	sort.SliceStable(result, func(i, j int) bool {
		fi, oki := ToFloat(result[i])
		fj, okj := ToFloat(result[j])
		if oki && okj {
			return fi < fj
		}
		return ToStringKey(result[i]) < ToStringKey(result[j])
	})
	return result
}
