package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Namer naming conventions used to derive tables, keys and method names from class names
type Namer interface {
	TableName(class string) string
	ColumnName(column string) string
	ForeignKey(class, key string) string
	JoinTableName(classes ...string) string
	MorphTableName(name string) string
	ScopeName(method string) string
}

// NamingStrategy tables, columns naming strategy
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
}

// TableName convert a class name to table name, `BlogPost` => `blog_posts`
func (ns NamingStrategy) TableName(class string) string {
	if ns.SingularTable {
		return ns.TablePrefix + toDBName(class)
	}
	return ns.TablePrefix + inflection.Plural(toDBName(class))
}

// ColumnName convert string to column name
func (ns NamingStrategy) ColumnName(column string) string {
	return toDBName(column)
}

// ForeignKey default foreign key pointing to class, `User`, `id` => `user_id`
func (ns NamingStrategy) ForeignKey(class, key string) string {
	return toDBName(class) + "_" + key
}

// JoinTableName pivot table for a many to many relation, segments sorted alphabetically,
// `User`, `Role` => `role_user`
func (ns NamingStrategy) JoinTableName(classes ...string) string {
	segments := make([]string, 0, len(classes))
	for _, class := range classes {
		segments = append(segments, toDBName(class))
	}
	sort.Strings(segments)
	return ns.TablePrefix + strings.ToLower(strings.Join(segments, "_"))
}

// MorphTableName pivot table for a polymorphic many to many relation, `taggable` => `taggables`
func (ns NamingStrategy) MorphTableName(name string) string {
	return ns.TablePrefix + inflection.Plural(toDBName(name))
}

// ScopeName method name of a local scope, `of_type` => `OfType`, `popular` => `Popular`
func (ns NamingStrategy) ScopeName(method string) string {
	return Studly(method)
}

// ToDBName exported toDBName
func ToDBName(name string) string {
	return toDBName(name)
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Studly converts snake, kebab or space separated words into PascalCase
func Studly(value string) string {
	words := strings.FieldsFunc(value, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	var buf strings.Builder
	for _, word := range words {
		buf.WriteString(titleCaser.String(word))
	}
	return buf.String()
}

var (
	smap sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	var commonInitialismsForReplacer []string
	for _, initialism := range commonInitialisms {
		commonInitialismsForReplacer = append(commonInitialismsForReplacer, initialism, titleCaser.String(strings.ToLower(initialism)))
	}
	commonInitialismsReplacer = strings.NewReplacer(commonInitialismsForReplacer...)
}

func toDBName(name string) string {
	if name == "" {
		return ""
	} else if v, ok := smap.Load(name); ok {
		return fmt.Sprint(v)
	}

	var (
		value                          = commonInitialismsReplacer.Replace(name)
		buf                            strings.Builder
		lastCase, nextCase, nextNumber bool // upper case == true
		curCase                        = value[0] <= 'Z' && value[0] >= 'A'
	)

	for i, v := range value[:len(value)-1] {
		nextCase = value[i+1] <= 'Z' && value[i+1] >= 'A'
		nextNumber = value[i+1] >= '0' && value[i+1] <= '9'

		if curCase {
			if lastCase && (nextCase || nextNumber) {
				buf.WriteRune(v + 32)
			} else {
				if i > 0 && value[i-1] != '_' && value[i+1] != '_' {
					buf.WriteByte('_')
				}
				buf.WriteRune(v + 32)
			}
		} else {
			buf.WriteRune(v)
		}

		lastCase = curCase
		curCase = nextCase
	}

	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(value[len(value)-1] + 32)
	} else {
		buf.WriteByte(value[len(value)-1])
	}

	result := buf.String()
	smap.Store(name, result)
	return result
}
