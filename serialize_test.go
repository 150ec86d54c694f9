package record

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMap(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	ada := create(t, db, User, map[string]interface{}{
		"name":    "ada",
		"email":   "ada@example.com",
		"options": map[string]interface{}{"theme": "dark"},
	})
	create(t, db, Post, map[string]interface{}{"title": "p", "votes": "7", "user_id": ada.GetKey()})

	user, err := db.Query(User).With("posts", "phone").Find(ctx, ada.GetKey())
	require.NoError(t, err)

	values, err := user.ToMap()
	require.NoError(t, err)

	assert.NotContains(t, values, "email")
	assert.Equal(t, "ada", values["name"])
	assert.Equal(t, map[string]interface{}{"theme": "dark"}, values["options"])
	assert.Equal(t, "2024-02-29 12:00:00", values["created_at"])
	assert.Nil(t, values["phone"])
	assert.Contains(t, values, "phone")

	posts, ok := values["posts"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(7), posts[0]["votes"])
	assert.Equal(t, false, posts[0]["published"])
	assert.Nil(t, posts[0]["deleted_at"])
}

func TestVisibleAttributes(t *testing.T) {
	db := openDB(t)

	class := &Class{Name: "Card", Visible: []string{"name", "owner"}, Hidden: []string{"owner"}}
	m := db.New(class)
	require.NoError(t, m.Fill(map[string]interface{}{"name": "x", "secret": "y"}))
	m.SetRelation("owner", db.New(User))

	values, err := m.ToMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "x"}, values)
}

func TestMarshalJSON(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	ada := create(t, db, User, map[string]interface{}{"name": "ada", "email": "hidden"})
	post := create(t, db, Post, map[string]interface{}{"title": "p", "user_id": ada.GetKey()})
	create(t, db, Comment, map[string]interface{}{"body": "c", "post_id": post.GetKey()})

	found, err := db.Query(Post).With("comments").Find(ctx, post.GetKey())
	require.NoError(t, err)

	data, err := json.Marshal(found)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1,
		"user_id": 1,
		"title": "p",
		"votes": 0,
		"published": false,
		"created_at": "2024-02-29 12:00:00",
		"updated_at": "2024-02-29 12:00:00",
		"deleted_at": null,
		"comments": [{
			"id": 1,
			"post_id": 1,
			"body": "c",
			"created_at": "2024-02-29 12:00:00",
			"updated_at": "2024-02-29 12:00:00"
		}]
	}`, string(data))

	users, err := db.Query(User).Get(ctx, "id", "name", "email")
	require.NoError(t, err)
	data, err = json.Marshal(users)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "name": "ada"}]`, string(data))

	data, err = json.Marshal(Collection{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
