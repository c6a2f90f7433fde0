package db

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/coursebots/internal/store/memory"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	return New(memory.NewStore())
}

func TestKeyNoCollision(t *testing.T) {
	a := key(nsMetadata, "a,b", "c")
	b := key(nsMetadata, "a", "b,c")
	if string(a) == string(b) {
		t.Fatalf("key() collided: %q", a)
	}
	if string(key(nsList, "x")) == string(key(nsTree, "x")) {
		t.Fatal("namespaces collided")
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs := newTestDB(t).Document("bot")

	rec, err := docs.Create("0").Set("name", "Anna0").Set("token", "t0").Exec(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.String("name") != "Anna0" {
		t.Errorf("created name = %q", rec.String("name"))
	}

	if _, err := docs.Create("0").Set("name", "other").Exec(ctx); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Create() error = %v, want ErrAlreadyExists", err)
	}

	rec, err = docs.Update("0").Set("lastSeen", int64(42)).Exec(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.String("name") != "Anna0" || rec.Int64("lastSeen") != 42 {
		t.Errorf("Update() lost fields: %v", rec.Fields())
	}

	found, err := docs.Find(ctx, "0", "token")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !reflect.DeepEqual(found.Fields(), []string{"token"}) {
		t.Errorf("Find() projected fields = %v", found.Fields())
	}

	snap, err := docs.Delete(ctx, "0", "name")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if snap == nil || snap.String("name") != "Anna0" {
		t.Errorf("Delete() snapshot = %+v", snap)
	}

	if got, _ := docs.Find(ctx, "0"); got != nil {
		t.Errorf("Find() after Delete() = %+v, want nil", got)
	}
	if got, _ := docs.Delete(ctx, "0"); got != nil {
		t.Errorf("second Delete() = %+v, want nil", got)
	}
	if _, err := docs.Update("0").Set("name", "x").Exec(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() after Delete() error = %v, want ErrNotFound", err)
	}

	// a tombstoned id can be created again
	if _, err := docs.Create("0").Set("name", "Anna0").Exec(ctx); err != nil {
		t.Errorf("Create() over tombstone error = %v", err)
	}
}

func TestRecordNullField(t *testing.T) {
	ctx := context.Background()
	docs := newTestDB(t).Document("bot")

	rec, err := docs.Create("1").Set("trigger", nil).Exec(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.Has("trigger") || rec.StringPtr("trigger") != nil {
		t.Error("null field should read as unset")
	}
	rec, _ = docs.Update("1").Set("trigger", "calc").Exec(ctx)
	if p := rec.StringPtr("trigger"); p == nil || *p != "calc" {
		t.Errorf("StringPtr() = %v", p)
	}
}

func TestListInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestDB(t).List("channels", "Anna0")

	for i := 0; i < 2; i++ {
		if _, err := l.Insert(ctx, "#a"); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	n, _ := l.Len(ctx)
	if n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestListOrderAndRemove(t *testing.T) {
	ctx := context.Background()
	l := newTestDB(t).List("channels", "Anna0")

	empty, err := l.Values(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("Values() of unwritten list = %v, %v", empty, err)
	}

	for _, v := range []string{"A", "B", "C", "D"} {
		if ok, err := l.Insert(ctx, v); err != nil || !ok {
			t.Fatalf("Insert(%s) = %v, %v", v, ok, err)
		}
	}

	tests := []struct {
		remove string
		want   []string
	}{
		{remove: "B", want: []string{"A", "C", "D"}},
		{remove: "A", want: []string{"C", "D"}},
		{remove: "D", want: []string{"C"}},
		{remove: "X", want: []string{"C"}},
		{remove: "C", want: []string{}},
	}
	for _, tt := range tests {
		t.Run("remove "+tt.remove, func(t *testing.T) {
			if _, err := l.Remove(ctx, tt.remove); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			got, err := l.Values(ctx)
			if err != nil {
				t.Fatalf("Values() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Values() = %v, want %v", got, tt.want)
			}
			if ok, _ := l.Contains(ctx, tt.remove); ok {
				t.Errorf("Contains(%s) after Remove() = true", tt.remove)
			}
		})
	}

	// re-inserting a removed value appends it
	_, _ = l.Insert(ctx, "B")
	_, _ = l.Insert(ctx, "A")
	got, _ := l.Values(ctx)
	if !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("Values() after re-insert = %v", got)
	}
}

func TestListConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	l := newTestDB(t).List("bots", "#c")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Insert(ctx, "same")
		}()
	}
	wg.Wait()

	got, err := l.Values(ctx)
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("concurrent inserts produced %v", got)
	}
}

func TestTree(t *testing.T) {
	ctx := context.Background()
	tr := newTestDB(t).Tree("bots", "all")

	if m, err := tr.Max(ctx); err != nil || m != nil {
		t.Fatalf("Max() of empty tree = %v, %v", m, err)
	}

	inserts := []struct {
		key  TreeKey
		val  string
		want bool
	}{
		{key: TreeKey{2, "b"}, val: "two-b", want: true},
		{key: TreeKey{1, "z"}, val: "one-z", want: true},
		{key: TreeKey{2, "a"}, val: "two-a", want: true},
		{key: TreeKey{2, "a"}, val: "dup", want: false},
		{key: TreeKey{-5, ""}, val: "neg", want: true},
	}
	for _, tt := range inserts {
		got, err := tr.Insert(ctx, tt.key, tt.val)
		if err != nil {
			t.Fatalf("Insert(%v) error = %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Insert(%v) = %v, want %v", tt.key, got, tt.want)
		}
	}

	v, _ := tr.Search(ctx, TreeKey{2, "a"})
	if v == nil || *v != "two-a" {
		t.Errorf("Search() = %v, duplicate insert must not overwrite", v)
	}

	entries, err := tr.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	var order []string
	for _, e := range entries {
		order = append(order, e.Value)
	}
	if want := []string{"neg", "one-z", "two-a", "two-b"}; !reflect.DeepEqual(order, want) {
		t.Errorf("Entries() order = %v, want %v", order, want)
	}

	m, _ := tr.Max(ctx)
	if m == nil || m.Key != (TreeKey{2, "b"}) {
		t.Errorf("Max() = %+v", m)
	}

	if ok, _ := tr.Delete(ctx, TreeKey{2, "b"}); !ok {
		t.Error("Delete() of present key = false")
	}
	if ok, _ := tr.Delete(ctx, TreeKey{2, "b"}); ok {
		t.Error("Delete() of absent key = true")
	}
	if ok, _ := tr.Contains(ctx, TreeKey{2, "b"}); ok {
		t.Error("Contains() after Delete() = true")
	}

	if err := tr.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := tr.Len(ctx); n != 0 {
		t.Errorf("Len() after Clear() = %d", n)
	}
	if ok, _ := tr.Insert(ctx, TreeKey{1, "z"}, "again"); !ok {
		t.Error("Insert() after Clear() = false")
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	m := newTestDB(t).Metadata()

	if _, ok, err := m.Find(ctx, "count", "Anna0"); err != nil || ok {
		t.Fatalf("Find() of unseen counter = %v, %v", ok, err)
	}

	for i := 0; i < 5; i++ {
		if _, err := m.UpdateBy(ctx, "count", "Anna0", 1); err != nil {
			t.Fatalf("UpdateBy() error = %v", err)
		}
	}
	if v, _, _ := m.Find(ctx, "count", "Anna0"); v != 5 {
		t.Errorf("after five UpdateBy(+1) = %d, want 5", v)
	}

	if created, _ := m.Create(ctx, "count", "Anna0", 0); created {
		t.Error("Create() over an existing counter should be a no-op")
	}
	if err := m.Update(ctx, "count", "Anna0", 0); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if v, ok, _ := m.Find(ctx, "count", "Anna0"); !ok || v != 0 {
		t.Errorf("Find() after Update(0) = %d, %v", v, ok)
	}

	if ok, _ := m.UpdateIfExists(ctx, "count", "nobody", 1); ok {
		t.Error("UpdateIfExists() created a counter")
	}

	if ok, _ := m.Delete(ctx, "count", "Anna0"); !ok {
		t.Error("Delete() = false for existing counter")
	}
	if _, ok, _ := m.Find(ctx, "count", "Anna0"); ok {
		t.Error("deleted counter should be absent, not zero")
	}
}

func TestMetadataConcurrentUpdateBy(t *testing.T) {
	ctx := context.Background()
	m := newTestDB(t).Metadata()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.UpdateBy(ctx, "lastBotId", "", 1)
		}()
	}
	wg.Wait()

	if v, _, _ := m.Find(ctx, "lastBotId", ""); v != 50 {
		t.Errorf("lost increments: %d, want 50", v)
	}
}
