package record

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/now"

	"gorm.io/record/utils"
)

var primitiveCastTypes = []string{
	"int", "integer", "real", "float", "double", "decimal", "string", "bool", "boolean", "timestamp",
}

var standardDate = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)

// getCastType normalized cast of key, `datetime:Y-m-d` => `custom_datetime`, `decimal:2` => `decimal`
func (m *Model) getCastType(key string) string {
	cast := strings.ToLower(strings.TrimSpace(m.class.Casts[key]))
	switch {
	case strings.HasPrefix(cast, "datetime:"), strings.HasPrefix(cast, "date:"):
		return "custom_datetime"
	case strings.HasPrefix(cast, "immutable_datetime:"), strings.HasPrefix(cast, "immutable_date:"):
		return "immutable_custom_datetime"
	case strings.HasPrefix(cast, "decimal:"):
		return "decimal"
	}
	return cast
}

// castArgument the part after `:` of the cast of key
func (m *Model) castArgument(key string) string {
	cast := m.class.Casts[key]
	if idx := strings.IndexByte(cast, ':'); idx >= 0 {
		return strings.TrimSpace(cast[idx+1:])
	}
	return ""
}

// hasCast reports whether key has a cast, one of types when given
func (m *Model) hasCast(key string, types ...string) bool {
	if _, ok := m.class.Casts[key]; !ok {
		return false
	}
	if len(types) == 0 {
		return true
	}
	return utils.Contains(types, m.getCastType(key))
}

func (m *Model) isJSONCastable(key string) bool {
	return m.hasCast(key, "array", "json", "object", "collection")
}

func (m *Model) isDateCastable(key string) bool {
	return m.hasCast(key, "date", "datetime", "custom_datetime", "immutable_date", "immutable_datetime",
		"immutable_custom_datetime", "timestamp")
}

// GetDates columns handled as dates
func (m *Model) GetDates() []string {
	dates := append([]string(nil), m.class.Dates...)
	if m.class.usesTimestamps() {
		dates = append(dates, m.class.CreatedAtColumn, m.class.UpdatedAtColumn)
	}
	if m.class.SoftDeletes {
		dates = append(dates, m.class.DeletedAtColumn)
	}
	return dates
}

func (m *Model) isDateAttribute(key string) bool {
	return utils.Contains(m.GetDates(), key) || m.isDateCastable(key)
}

// castAttribute casts value per the cast of key, unknown casts pass value through
func (m *Model) castAttribute(key string, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch m.getCastType(key) {
	case "int", "integer":
		return toInt64(value), nil
	case "real", "float", "double":
		f, _ := utils.ToFloat(value)
		return f, nil
	case "decimal":
		return asDecimal(value, m.castArgument(key))
	case "string":
		return toString(value), nil
	case "bool", "boolean":
		return toBool(value), nil
	case "object":
		return fromJSON(value)
	case "array", "json":
		return fromJSON(value)
	case "collection":
		decoded, err := fromJSON(value)
		if err != nil {
			return nil, err
		}
		return asList(decoded), nil
	case "date", "immutable_date":
		return m.asDate(value)
	case "datetime", "custom_datetime", "immutable_datetime", "immutable_custom_datetime":
		return m.AsDateTime(value)
	case "timestamp":
		t, err := m.AsDateTime(value)
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	}
	return value, nil
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int64:
		return v
	}
	f, _ := utils.ToFloat(value)
	return int64(f)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

func toBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		if f, ok := utils.ToFloat(v); ok {
			return f != 0
		}
		return v != ""
	}
	f, ok := utils.ToFloat(value)
	return ok && f != 0
}

func asDecimal(value interface{}, decimals string) (string, error) {
	f, ok := utils.ToFloat(value)
	if !ok {
		return "", fmt.Errorf("unable to cast %v to decimal", value)
	}
	precision, err := strconv.Atoi(decimals)
	if err != nil {
		precision = 0
	}
	return strconv.FormatFloat(f, 'f', precision, 64), nil
}

// asList JSON arrays as is, object values in key order, scalars wrapped
func asList(decoded interface{}) []interface{} {
	switch v := decoded.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		list := make([]interface{}, 0, len(v))
		for _, key := range keys {
			list = append(list, v[key])
		}
		return list
	case nil:
		return []interface{}{}
	}
	return []interface{}{decoded}
}

func (m *Model) asDate(value interface{}) (time.Time, error) {
	t, err := m.AsDateTime(value)
	if err != nil {
		return t, err
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location()), nil
}

// AsDateTime parses value: time.Time, epoch seconds, `Y-m-d`, the storage format, then loose formats
func (m *Model) AsDateTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case []byte:
		return m.AsDateTime(string(v))
	case string:
		if matches := standardDate.FindStringSubmatch(v); matches != nil {
			y, _ := strconv.Atoi(matches[1])
			mo, _ := strconv.Atoi(matches[2])
			d, _ := strconv.Atoi(matches[3])
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.Local), nil
		}

		if f, ok := utils.ToFloat(v); ok {
			return time.Unix(int64(f), 0), nil
		}

		if t, err := time.ParseInLocation(m.dateLayout(), v, time.Local); err == nil {
			return t, nil
		}

		parser := &now.Config{TimeLocation: time.Local}
		t, err := parser.Parse(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("unable to parse date %q: %w", v, err)
		}
		return t, nil
	default:
		if f, ok := utils.ToFloat(value); ok {
			return time.Unix(int64(f), 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %v (%T)", value, value)
}

// FromDateTime storage representation of a date value, empty strings stay empty
func (m *Model) FromDateTime(value interface{}) (string, error) {
	if s, ok := value.(string); ok && s == "" {
		return "", nil
	}

	t, err := m.AsDateTime(value)
	if err != nil {
		return "", err
	}
	return t.Format(m.dateLayout()), nil
}

// GetDateFormat storage format of dates
func (m *Model) GetDateFormat() string {
	if m.class.DateFormat != "" {
		return m.class.DateFormat
	}
	return m.db.DateFormat
}

func (m *Model) dateLayout() string {
	return ToGoLayout(m.GetDateFormat())
}

var layoutCache sync.Map

var phpLayout = map[byte]string{
	'Y': "2006", 'y': "06",
	'm': "01", 'n': "1", 'M': "Jan", 'F': "January",
	'd': "02", 'j': "2", 'D': "Mon", 'l': "Monday",
	'H': "15", 'G': "15", 'h': "03", 'g': "3",
	'i': "04", 's': "05", 'u': "000000", 'v': "000",
	'A': "PM", 'a': "pm",
	'T': "MST", 'e': "MST", 'P': "-07:00", 'O': "-0700",
}

// ToGoLayout converts a PHP date format (`Y-m-d H:i:s`) to a Go layout, Go layouts are returned as is
func ToGoLayout(format string) string {
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	if v, ok := layoutCache.Load(format); ok {
		return v.(string)
	}

	var buf strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			buf.WriteByte(format[i])
			continue
		}
		if layout, ok := phpLayout[c]; ok {
			buf.WriteString(layout)
		} else {
			buf.WriteByte(c)
		}
	}

	layout := buf.String()
	layoutCache.Store(format, layout)
	return layout
}

// serializeDate date attribute as serialized by ToMap
func (m *Model) serializeDate(key string, t time.Time) string {
	if m.hasCast(key, "custom_datetime", "immutable_custom_datetime") {
		return t.Format(ToGoLayout(m.castArgument(key)))
	}
	if m.hasCast(key, "date", "immutable_date") {
		return t.Format("2006-01-02")
	}
	return t.Format(m.dateLayout())
}
