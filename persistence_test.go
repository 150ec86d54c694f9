package record

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndUpdate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	user := create(t, db, User, map[string]interface{}{"name": "ada"})
	assert.True(t, user.Exists)
	assert.True(t, user.WasRecentlyCreated)
	assert.Equal(t, int64(1), user.GetKey())
	assert.Equal(t, "2024-02-29 12:00:00", user.GetAttributes()["created_at"])
	assert.Equal(t, "2024-02-29 12:00:00", user.GetAttributes()["updated_at"])

	updated, err := user.Update(ctx, map[string]interface{}{"name": "grace"})
	require.NoError(t, err)
	assert.True(t, updated)

	fresh, err := user.Fresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "grace", fresh.Get("name"))
	assert.True(t, fresh.Is(user))
	assert.False(t, fresh.WasRecentlyCreated)

	saved, err := fresh.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved, "saving a clean model succeeds without a query")

	updated, err = db.New(User).Update(ctx, map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestModelEvents(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	class := &Class{Name: "Audited", Table: "countries"}
	var fired []Event
	for _, event := range []Event{EventSaving, EventCreating, EventCreated, EventUpdating, EventUpdated, EventSaved, EventDeleting, EventDeleted, EventRetrieved} {
		event := event
		class.On(event, func(ctx context.Context, m *Model) bool {
			fired = append(fired, event)
			return true
		})
	}

	m := create(t, db, class, map[string]interface{}{"name": "fr"})
	assert.Equal(t, []Event{EventSaving, EventCreating, EventCreated, EventSaved}, fired)

	fired = nil
	_, err := m.Update(ctx, map[string]interface{}{"name": "de"})
	require.NoError(t, err)
	assert.Equal(t, []Event{EventSaving, EventUpdating, EventUpdated, EventSaved}, fired)

	fired = nil
	_, err = db.Query(class).Find(ctx, m.GetKey())
	require.NoError(t, err)
	assert.Equal(t, []Event{EventRetrieved}, fired)

	fired = nil
	deleted, err := m.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, m.Exists)
	assert.Equal(t, []Event{EventDeleting, EventDeleted}, fired)
}

func TestModelEventVeto(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	class := &Class{Name: "Vetoed", Table: "countries"}
	class.On(EventCreating, func(ctx context.Context, m *Model) bool {
		return m.Get("name") != "forbidden"
	})
	class.On(EventDeleting, func(ctx context.Context, m *Model) bool {
		return false
	})

	m := db.New(class).Set("name", "forbidden")
	saved, err := m.Save(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.False(t, m.Exists)

	count, err := db.Query(class).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	m = create(t, db, class, map[string]interface{}{"name": "allowed"})
	deleted, err := m.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, m.Exists)

	class.Flush()
	deleted, err = m.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSoftDeletes(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	post := create(t, db, Post, map[string]interface{}{"title": "p"})
	var trashedEvents int
	Post.On(EventTrashed, func(ctx context.Context, m *Model) bool {
		trashedEvents++
		return true
	})
	t.Cleanup(Post.Flush)

	deleted, err := post.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, post.Trashed())
	assert.True(t, post.Exists)
	assert.Equal(t, 1, trashedEvents)
	assert.False(t, post.IsDirty("deleted_at"))

	found, err := db.Query(Post).Find(ctx, post.GetKey())
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = db.Query(Post).WithTrashed().Find(ctx, post.GetKey())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Trashed())

	restored, err := found.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.False(t, found.Trashed())

	count, err := db.Query(Post).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	affected, err := db.Query(Post).Where("title", "p").Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	trashed, err := db.Query(Post).OnlyTrashed().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), trashed)

	affected, err = db.Query(Post).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	deleted, err = found.ForceDelete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, found.Exists)

	all, err := db.Query(Post).WithTrashed().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, all)
}

func TestFindVariants(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	for _, name := range []string{"fr", "jp", "de"} {
		create(t, db, Country, map[string]interface{}{"name": name})
	}

	found, err := db.Query(Country).Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "jp", found.Get("name"))

	missing, err := db.Query(Country).Find(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = db.Query(Country).FindOrFail(ctx, 42)
	var notFound *ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Country", notFound.Class)
	assert.Equal(t, []interface{}{42}, notFound.IDs)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	many, err := db.Query(Country).FindManyOrFail(ctx, []interface{}{3, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, keysOf(many))

	_, err = db.Query(Country).FindManyOrFail(ctx, []interface{}{1, 7, 9, 7})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []interface{}{7, 9}, notFound.IDs)

	first, err := db.Query(Country).FirstWhere(ctx, "name", "de")
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.GetKey())

	_, err = db.Query(Country).Where("name", "xx").FirstOrFail(ctx)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	fresh, err := db.Query(Country).FindOrNew(ctx, 99)
	require.NoError(t, err)
	assert.False(t, fresh.Exists)

	exists, err := db.Query(Country).Where("name", "fr").Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	value, err := db.Query(Country).Where("name", "jp").Value(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)
}

func TestFirstOrCreateAndUpdateOrCreate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	first, err := db.Query(Country).FirstOrCreate(ctx, map[string]interface{}{"name": "fr"})
	require.NoError(t, err)
	assert.True(t, first.WasRecentlyCreated)

	again, err := db.Query(Country).FirstOrCreate(ctx, map[string]interface{}{"name": "fr"})
	require.NoError(t, err)
	assert.False(t, again.WasRecentlyCreated)
	assert.True(t, again.Is(first))

	post, err := db.Query(Post).UpdateOrCreate(ctx, map[string]interface{}{"title": "p"}, map[string]interface{}{"votes": 3})
	require.NoError(t, err)
	assert.True(t, post.WasRecentlyCreated)

	post, err = db.Query(Post).UpdateOrCreate(ctx, map[string]interface{}{"title": "p"}, map[string]interface{}{"votes": 5})
	require.NoError(t, err)
	assert.False(t, post.WasRecentlyCreated)
	assert.Equal(t, int64(5), post.Get("votes"))

	count, err := db.Query(Post).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIncrementAndPluck(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	create(t, db, Post, map[string]interface{}{"title": "a", "votes": 1, "published": true})
	create(t, db, Post, map[string]interface{}{"title": "b", "votes": 2, "published": false})

	affected, err := db.Query(Post).Where("title", "a").Increment(ctx, "votes", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = db.Query(Post).Where("title", "b").Decrement(ctx, "votes", 1)
	require.NoError(t, err)

	votes, err := db.Query(Post).OrderBy("id").Pluck(ctx, "votes")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(11), int64(1)}, votes)

	published, err := db.Query(Post).OrderBy("id").Pluck(ctx, "published")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{true, false}, published)

	titles, err := db.Query(Post).OrderBy("id").Pluck(ctx, "posts.title")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, titles)
}

func TestChunking(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		create(t, db, Country, map[string]interface{}{"name": "c"})
	}

	var pages [][]int64
	completed, err := db.Query(Country).Chunk(ctx, 2, func(models Collection, page int) (bool, error) {
		pages = append(pages, keysOf(models))
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, pages)

	pages = nil
	completed, err = db.Query(Country).Chunk(ctx, 2, func(models Collection, page int) (bool, error) {
		pages = append(pages, keysOf(models))
		return page < 2, nil
	})
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Len(t, pages, 2)

	pages = nil
	completed, err = db.Query(Country).ChunkByID(ctx, 2, func(models Collection, page int) (bool, error) {
		for _, m := range models {
			_, err := m.Delete(ctx)
			require.NoError(t, err)
		}
		pages = append(pages, keysOf(models))
		return true, nil
	}, "", "")
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, pages, "deleting rows while paging by id skips nothing")

	for i := 0; i < 3; i++ {
		create(t, db, Country, map[string]interface{}{"name": "c"})
	}
	_, err = db.Query(Country).Select("name").ChunkByID(ctx, 2, func(models Collection, page int) (bool, error) {
		return true, nil
	}, "id", "id")
	assert.ErrorIs(t, err, ErrChunkColumnMissing)

	var seen []int
	_, err = db.Query(Country).Each(ctx, 2, func(m *Model, idx int) (bool, error) {
		seen = append(seen, idx)
		return idx < 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, seen)
}

func TestRefreshReplicatePush(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	ada := create(t, db, User, map[string]interface{}{"name": "ada"})
	create(t, db, Post, map[string]interface{}{"title": "p", "user_id": ada.GetKey()})
	require.NoError(t, ada.Load(ctx, "posts"))

	exec(t, db, "UPDATE users SET name = ?", "grace")
	exec(t, db, "UPDATE posts SET title = ?", "q")
	require.NoError(t, ada.Refresh(ctx))
	assert.Equal(t, "grace", ada.Get("name"))
	assert.Equal(t, "q", ada.RelatedMany("posts")[0].Get("title"))

	copied := ada.Replicate("email")
	assert.Nil(t, copied.GetKey())
	assert.NotContains(t, copied.GetAttributes(), "created_at")
	assert.False(t, copied.Exists)
	_, err := copied.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied.GetKey())

	ada.Set("name", "ada")
	ada.RelatedMany("posts")[0].Set("title", "pushed")
	pushed, err := ada.Push(ctx)
	require.NoError(t, err)
	assert.True(t, pushed)

	title, err := db.Query(Post).Value(ctx, "title")
	require.NoError(t, err)
	assert.Equal(t, "pushed", title)
}

func TestTransactions(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(ctx context.Context) error {
		create(t, db, Country, map[string]interface{}{"name": "fr"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := db.Query(Country).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rolled back")

	require.NoError(t, db.Transaction(ctx, func(ctx context.Context) error {
		_, err := db.Query(Country).Create(ctx, map[string]interface{}{"name": "jp"})
		return err
	}))
	count, err = db.Query(Country).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStringAndUUIDKeys(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	exec(t, db, "CREATE TABLE tokens (id TEXT PRIMARY KEY, name TEXT)")

	class := &Class{Name: "Token", Table: "tokens", KeyType: KeyUUID}
	token := create(t, db, class, map[string]interface{}{"name": "t"})

	id, ok := token.GetKey().(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	found, err := db.Query(class).Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t", found.Get("name"))

	named := &Class{Name: "NamedToken", Table: "tokens", KeyType: KeyString}
	m := create(t, db, named, map[string]interface{}{"id": "fixed", "name": "n"})
	assert.Equal(t, "fixed", m.GetKey())
	assert.True(t, m.Exists)
}

func TestWithoutDefaultTransaction(t *testing.T) {
	db := openDB(t, WithoutDefaultTransaction())
	ctx := context.Background()

	var level int
	Country.On(EventCreating, func(ctx context.Context, m *Model) bool {
		level = db.Connection().TransactionLevel()
		return true
	})
	t.Cleanup(Country.Flush)

	_, err := db.Query(Country).Create(ctx, map[string]interface{}{"name": "fr"})
	require.NoError(t, err)
	assert.Zero(t, level)
}
