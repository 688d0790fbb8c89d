package model

// DirectorySearch is one paged search request
type DirectorySearch struct {
	BaseDN     string
	Filter     string
	Attributes []string
	PageSize   uint32
	// Cookie continues a previous page; empty starts a new search
	Cookie []byte
}

// DirectoryEntry is one search result
type DirectoryEntry struct {
	DN         string
	Attributes map[string][]string
}

// First returns the first value of attribute name, or ""
func (e *DirectoryEntry) First(name string) string {
	if v := e.Attributes[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of attribute name
func (e *DirectoryEntry) Values(name string) []string {
	return e.Attributes[name]
}

// DirectoryPage is one page of results. An empty Cookie means the server has
// no further pages.
type DirectoryPage struct {
	Entries []*DirectoryEntry
	Cookie  []byte
}
