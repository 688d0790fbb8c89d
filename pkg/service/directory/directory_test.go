package directory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/repository/memory"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
	"github.com/secmon-lab/ipasync/pkg/service/directory"
	"github.com/secmon-lab/ipasync/pkg/service/ldap/ldaptest"
)

const baseDN = "OU=Staff,DC=corp,DC=example"

func person(cn, mail string, attrs ...string) *model.DirectoryEntry {
	all := append([]string{"cn", cn, "mail", mail}, attrs...)
	return ldaptest.Person(fmt.Sprintf("CN=%s,%s", cn, baseDN), all...)
}

func setup(t *testing.T, entries ...*model.DirectoryEntry) (*directory.Adapter, *ldaptest.Directory, *cache.Store) {
	t.Helper()
	dir := ldaptest.New(entries...)
	store := cache.New(memory.New())
	adapter := directory.New(dir, store, baseDN,
		directory.WithPageSize(2),
		directory.WithCorporateDomains("corp.example"),
	)
	return adapter, dir, store
}

func TestFetchAll(t *testing.T) {
	ctx := context.Background()

	entries := []*model.DirectoryEntry{
		person("Jane Doe", "Jane.Doe@corp.example",
			"givenName", "Jane", "sn", "Doe", "name", "Jane Doe", "title", " CTO ",
			"sAMAccountName", "JDOE", "department", "Engineering", "memberOf", "CN=Staff,DC=corp"),
		person("John Roe", "john.roe@corp.example",
			"givenName", "John", "sn", "Roe", "manager", "CN=Jane Doe,"+baseDN),
		person("Max Mustermann", "max.mustermann@corp.example",
			"manager", "CN=Nobody Known,"+baseDN),
		person("Ext Partner", "ext.partner@partner.example"),
		ldaptest.Person("CN=Printer,"+baseDN, "cn", "Printer"),
	}

	t.Run("walks every page and normalizes records", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)

		users, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()
		gt.Value(t, len(users)).Equal(3)

		jane := users["jane.doe"]
		gt.Value(t, jane).NotNil()
		gt.Value(t, jane.Email).Equal("jane.doe@corp.example")
		gt.Value(t, jane.JobTitle).Equal("CTO")
		gt.Value(t, jane.OrgUnit).Equal("Engineering")
		gt.Array(t, jane.Alias).Has("jdoe")
		gt.Array(t, jane.MemberOf).Length(1)
		gt.Value(t, jane.City).Equal("")

		gt.Value(t, users["john.roe"].Manager).Equal("jane.doe")
		gt.Value(t, users["max.mustermann"].Manager).Equal("")
		gt.Bool(t, users.Has("ext.partner")).False()

		// 5 entries at 2 per page
		gt.Array(t, dir.Searches()).Length(3)
	})

	t.Run("serves a valid cache without contacting the directory", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)

		_, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()
		before := len(dir.Searches())

		users, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()
		gt.Value(t, len(users)).Equal(3)
		gt.Value(t, len(dir.Searches())).Equal(before)
	})

	t.Run("force refresh bypasses the cache", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)

		_, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()

		dir.SetEntries(entries[0])
		users, ok := adapter.FetchAll(ctx, true)
		gt.Bool(t, ok).True()
		gt.Value(t, len(users)).Equal(1)
	})

	t.Run("page failure discards the whole refresh", func(t *testing.T) {
		adapter, dir, store := setup(t, entries...)
		dir.FailOnPage(2)

		users, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).False()
		gt.Value(t, users).Nil()

		_, cached := store.Users(ctx, types.CacheKindDirectory)
		gt.Bool(t, cached).False()
	})

	t.Run("failed refresh keeps the previous snapshot cached", func(t *testing.T) {
		adapter, dir, store := setup(t, entries...)

		_, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()

		dir.FailOnPage(-1)
		_, ok = adapter.FetchAll(ctx, true)
		gt.Bool(t, ok).False()

		users, cached := store.Users(ctx, types.CacheKindDirectory)
		gt.Bool(t, cached).True()
		gt.Value(t, len(users)).Equal(3)
	})
}

func TestFetchOne(t *testing.T) {
	ctx := context.Background()

	entries := []*model.DirectoryEntry{
		person("Jane Doe", "jane.doe@corp.example", "givenName", "Jane"),
		person("John Roe", "john.roe@corp.example", "manager", "CN=Jane Doe,"+baseDN),
		person("John Roebuck", "john.roebuck@corp.example"),
		person("Ext Partner", "ext.partner@partner.example"),
	}

	t.Run("queries the directory when the cache is cold", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)

		u, ok := adapter.FetchOne(ctx, "john.roe")
		gt.Bool(t, ok).True()
		gt.Value(t, u.Email).Equal("john.roe@corp.example")
		gt.Value(t, u.Manager).Equal("jane.doe")

		searches := dir.Searches()
		gt.Value(t, searches[0].PageSize).Equal(uint32(0))
		gt.String(t, searches[0].Filter).Contains("mail=john.roe@*")
	})

	t.Run("serves from a warm cache", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)
		_, ok := adapter.FetchAll(ctx, false)
		gt.Bool(t, ok).True()
		before := len(dir.Searches())

		u, ok := adapter.FetchOne(ctx, "jane.doe")
		gt.Bool(t, ok).True()
		gt.Value(t, u.Name).Equal("Jane")

		_, ok = adapter.FetchOne(ctx, "nobody.here")
		gt.Bool(t, ok).False()
		gt.Value(t, len(dir.Searches())).Equal(before)
	})

	t.Run("non corporate domain is absent", func(t *testing.T) {
		adapter, _, _ := setup(t, entries...)
		_, ok := adapter.FetchOne(ctx, "ext.partner")
		gt.Bool(t, ok).False()
	})

	t.Run("transport error is absent", func(t *testing.T) {
		adapter, dir, _ := setup(t, entries...)
		dir.FailOnPage(-1)
		_, ok := adapter.FetchOne(ctx, "jane.doe")
		gt.Bool(t, ok).False()
	})
}
