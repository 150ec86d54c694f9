package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDBName(t *testing.T) {
	var maps = map[string]string{
		"":                 "",
		"x":                "x",
		"X":                "x",
		"userRestrictions": "user_restrictions",
		"ThisIsATest":      "this_is_a_test",
		"EmployeeID":       "employee_id",
		"UUID":             "uuid",
		"FieldX":           "field_x",
		"BlogPost":         "blog_post",
		"already_snake":    "already_snake",
	}

	for key, value := range maps {
		if toDBName(key) != value {
			t.Errorf("%v toName should equal %v, but got %v", key, value, toDBName(key))
		}
	}
}

func TestNamingStrategy(t *testing.T) {
	ns := NamingStrategy{}

	assert.Equal(t, "users", ns.TableName("User"))
	assert.Equal(t, "blog_posts", ns.TableName("BlogPost"))
	assert.Equal(t, "people", ns.TableName("Person"))
	assert.Equal(t, "user_id", ns.ForeignKey("User", "id"))
	assert.Equal(t, "blog_post_uuid", ns.ForeignKey("BlogPost", "uuid"))
	assert.Equal(t, "role_user", ns.JoinTableName("User", "Role"))
	assert.Equal(t, "taggables", ns.MorphTableName("taggable"))
	assert.Equal(t, "Popular", ns.ScopeName("popular"))
	assert.Equal(t, "OfType", ns.ScopeName("of_type"))
	assert.Equal(t, "OfType", ns.ScopeName("ofType"))
}

func TestNamingStrategyPrefix(t *testing.T) {
	ns := NamingStrategy{TablePrefix: "app_", SingularTable: true}

	assert.Equal(t, "app_user", ns.TableName("User"))
	assert.Equal(t, "app_role_user", ns.JoinTableName("User", "Role"))
}
