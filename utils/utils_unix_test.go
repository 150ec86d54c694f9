//go:build unix
// +build unix

package utils

import (
	"testing"
)

func TestSourceDir(t *testing.T) {
	cases := []struct {
		file string
		want string
	}{
		{
			file: "/Users/name/go/pkg/mod/gorm.io/record@v1.2.3/utils/utils.go",
			want: "/Users/name/go/pkg/mod/gorm.io/",
		},
		{
			file: "/go/work/proj/record/utils/utils.go",
			want: "/go/work/proj/record/",
		},
		{
			file: "/go/work/proj/record_alias/utils/utils.go",
			want: "/go/work/proj/record_alias/",
		},
	}
	for _, c := range cases {
		s := sourceDir(c.file)
		if s != c.want {
			t.Fatalf("%s: expected %s, got %s", c.file, c.want, s)
		}
	}
}
