// Package ldaptest provides an in-memory directory for tests.
package ldaptest

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
)

// ErrUnavailable is returned when a failure is injected
var ErrUnavailable = goerr.New("directory unavailable")

// Directory serves entries page by page. The continuation cookie is the
// offset of the next page.
type Directory struct {
	mu       sync.Mutex
	entries  []*model.DirectoryEntry
	failPage int
	searches []*model.DirectorySearch
	closed   bool
}

var _ interfaces.DirectoryClient = &Directory{}

func New(entries ...*model.DirectoryEntry) *Directory {
	return &Directory{entries: entries}
}

// Person builds a person entry. attrs alternates attribute names and values.
func Person(dn string, attrs ...string) *model.DirectoryEntry {
	e := &model.DirectoryEntry{
		DN:         dn,
		Attributes: map[string][]string{"objectClass": {"person"}},
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes[attrs[i]] = append(e.Attributes[attrs[i]], attrs[i+1])
	}
	return e
}

// SetEntries replaces the directory content
func (d *Directory) SetEntries(entries ...*model.DirectoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = entries
}

// FailOnPage makes the n-th page (1-based) of every paged search fail. Zero
// disables the failure; a negative value fails every search.
func (d *Directory) FailOnPage(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPage = n
}

// Searches returns the requests received so far
func (d *Directory) Searches() []*model.DirectorySearch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*model.DirectorySearch(nil), d.searches...)
}

// Closed reports whether Close was called
func (d *Directory) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Directory) Search(ctx context.Context, req *model.DirectorySearch) (*model.DirectoryPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	reqCopy := *req
	d.searches = append(d.searches, &reqCopy)

	if d.failPage < 0 {
		return nil, ErrUnavailable
	}

	var matched []*model.DirectoryEntry
	for _, e := range d.entries {
		if matchFilter(req.Filter, e) {
			matched = append(matched, e)
		}
	}

	offset := 0
	if len(req.Cookie) > 0 {
		n, err := strconv.Atoi(string(req.Cookie))
		if err != nil {
			return nil, goerr.New("invalid paging cookie", goerr.V("cookie", string(req.Cookie)))
		}
		offset = n
	}

	size := len(matched)
	if req.PageSize > 0 {
		size = int(req.PageSize)
		if d.failPage > 0 && offset/size+1 == d.failPage {
			return nil, ErrUnavailable
		}
	}

	end := min(offset+size, len(matched))
	page := &model.DirectoryPage{Entries: matched[offset:end]}
	if req.PageSize > 0 && end < len(matched) {
		page.Cookie = []byte(strconv.Itoa(end))
	}
	return page, nil
}

func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var assertionPattern = regexp.MustCompile(`\(([A-Za-z]+)=([^()]*)\)`)

// matchFilter understands conjunctions of equality and trailing-wildcard
// assertions, which is all the adapter sends.
func matchFilter(filter string, e *model.DirectoryEntry) bool {
	for _, m := range assertionPattern.FindAllStringSubmatch(filter, -1) {
		attr, want := m[1], unescape(m[2])
		if !matchAttribute(e, attr, want) {
			return false
		}
	}
	return true
}

func matchAttribute(e *model.DirectoryEntry, attr, want string) bool {
	for name, values := range e.Attributes {
		if !strings.EqualFold(name, attr) {
			continue
		}
		for _, v := range values {
			if prefix, ok := strings.CutSuffix(want, "*"); ok {
				if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
					return true
				}
			} else if strings.EqualFold(v, want) {
				return true
			}
		}
	}
	return false
}

var escapePattern = regexp.MustCompile(`\\([0-9a-fA-F]{2})`)

func unescape(s string) string {
	return escapePattern.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[1:], 16, 8)
		if err != nil {
			return m
		}
		return string([]byte{byte(b)})
	})
}
