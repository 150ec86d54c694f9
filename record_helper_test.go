package record

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gorm.io/record/database"
	"gorm.io/record/dialects/sqlite"
	"gorm.io/record/logger"
)

var fixedNow = time.Date(2024, 2, 29, 12, 0, 0, 0, time.Local)

var fixtureSchema = []string{
	"CREATE TABLE countries (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
	"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, email TEXT, country_id INTEGER, options TEXT, created_at TEXT, updated_at TEXT)",
	"CREATE TABLE phones (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, number TEXT)",
	"CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, title TEXT, votes INTEGER DEFAULT 0, published INTEGER DEFAULT 0, created_at TEXT, updated_at TEXT, deleted_at TEXT)",
	"CREATE TABLE comments (id INTEGER PRIMARY KEY AUTOINCREMENT, post_id INTEGER, body TEXT, created_at TEXT, updated_at TEXT)",
	"CREATE TABLE roles (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
	"CREATE TABLE role_user (user_id INTEGER, role_id INTEGER, active INTEGER DEFAULT 0, created_at TEXT, updated_at TEXT)",
	"CREATE TABLE images (id INTEGER PRIMARY KEY AUTOINCREMENT, imageable_id INTEGER, imageable_type TEXT, url TEXT)",
	"CREATE TABLE videos (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT)",
	"CREATE TABLE tags (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
	"CREATE TABLE taggables (tag_id INTEGER, taggable_id INTEGER, taggable_type TEXT)",
}

var (
	Country = &Class{Name: "Country"}
	User    = &Class{
		Name:       "User",
		Timestamps: true,
		Casts:      map[string]string{"options": "array"},
		Hidden:     []string{"email"},
	}
	Phone = &Class{Name: "Phone"}
	Post  = &Class{
		Name:        "Post",
		Timestamps:  true,
		SoftDeletes: true,
		Casts:       map[string]string{"votes": "int", "published": "bool"},
		Touches:     []string{"user"},
	}
	Comment = &Class{Name: "Comment", Timestamps: true, Touches: []string{"post"}}
	Role    = &Class{Name: "Role"}
	Image   = &Class{Name: "Image"}
	Video   = &Class{Name: "Video"}
	Tag     = &Class{Name: "Tag"}
)

func init() {
	Country.Relations = map[string]RelationFunc{
		"users": func(m *Model) Relation { return m.HasMany(User) },
		"posts": func(m *Model) Relation { return m.HasManyThrough(Post, User) },
		"latestPost": func(m *Model) Relation {
			return m.HasOneThrough(Post, User).WithDefault(map[string]interface{}{"title": "none"})
		},
	}

	User.Relations = map[string]RelationFunc{
		"posts":   func(m *Model) Relation { return m.HasMany(Post) },
		"phone":   func(m *Model) Relation { return m.HasOne(Phone) },
		"country": func(m *Model) Relation { return m.BelongsTo(Country) },
		"roles": func(m *Model) Relation {
			return m.BelongsToMany(Role).WithPivot("active").WithTimestamps()
		},
		"avatar": func(m *Model) Relation { return m.MorphOne(Image, "imageable") },
	}

	Phone.Relations = map[string]RelationFunc{
		"user": func(m *Model) Relation { return m.BelongsTo(User) },
	}

	Post.Relations = map[string]RelationFunc{
		"user":     func(m *Model) Relation { return m.BelongsTo(User) },
		"comments": func(m *Model) Relation { return m.HasMany(Comment) },
		"images":   func(m *Model) Relation { return m.MorphMany(Image, "imageable") },
		"tags":     func(m *Model) Relation { return m.MorphToMany(Tag, "taggable") },
	}
	Post.Scopes = map[string]ScopeFunc{
		"Popular": func(b *Builder, _ ...interface{}) {
			b.Where("votes", ">", 10)
		},
		"Titled": func(b *Builder, params ...interface{}) {
			b.Where("title", params[0]).OrWhere("title", params[1])
		},
	}

	Comment.Relations = map[string]RelationFunc{
		"post": func(m *Model) Relation { return m.BelongsTo(Post) },
	}

	Role.Relations = map[string]RelationFunc{
		"users": func(m *Model) Relation { return m.BelongsToMany(User) },
	}

	Image.Relations = map[string]RelationFunc{
		"imageable": func(m *Model) Relation { return m.MorphTo() },
	}

	Video.Relations = map[string]RelationFunc{
		"tags":   func(m *Model) Relation { return m.MorphToMany(Tag, "taggable") },
		"images": func(m *Model) Relation { return m.MorphMany(Image, "imageable") },
	}

	Tag.Relations = map[string]RelationFunc{
		"posts":  func(m *Model) Relation { return m.MorphedByMany(Post, "taggable") },
		"videos": func(m *Model) Relation { return m.MorphedByMany(Video, "taggable") },
	}

	Register(Country, User, Phone, Post, Comment, Role, Image, Video, Tag)
}

// openDB opens a temp sqlite database holding the fixture schema
func openDB(t *testing.T, opts ...ConfigOption) *DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "record.db")
	conn, err := database.Open(sqlite.Open(dsn),
		database.WithLogger(logger.Discard),
		database.WithPoolSetup(func(db *sql.DB) { db.SetMaxOpenConns(1) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, stmt := range fixtureSchema {
		require.NoError(t, conn.Statement(context.Background(), stmt))
	}

	opts = append([]ConfigOption{WithLogger(logger.Discard), WithNowFunc(func() time.Time { return fixedNow })}, opts...)
	return Open(conn, opts...)
}

// create stores a model of class or fails the test
func create(t *testing.T, db *DB, class *Class, attrs map[string]interface{}) *Model {
	t.Helper()

	m, err := db.Query(class).Create(context.Background(), attrs)
	require.NoError(t, err)
	return m
}

// exec runs a raw statement on the fixture database
func exec(t *testing.T, db *DB, stmt string, bindings ...interface{}) {
	t.Helper()
	require.NoError(t, db.Connection().Statement(context.Background(), stmt, bindings...))
}

// keysOf primary keys of models as int64
func keysOf(models Collection) []int64 {
	keys := make([]int64, 0, len(models))
	for _, m := range models {
		keys = append(keys, toInt64(m.GetKey()))
	}
	return keys
}
