package registry

import "strings"

// Filter is a purely local view scope applied after the full collection has
// been fetched. Derivations are recomputed per request from
// (assets, identity, filter); nothing here is ever sent to the gateway.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterOwned    Filter = "owned"
	FilterPending  Filter = "pending"
	FilterMine     Filter = "mine"
	FilterPublic   Filter = "public"
	FilterIncoming Filter = "incoming"
	FilterOutgoing Filter = "outgoing"
)

// ParseFilter maps a query-string value onto a known filter, defaulting to all.
func ParseFilter(raw string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case FilterOwned, FilterPending, FilterMine, FilterPublic, FilterIncoming, FilterOutgoing:
		return f
	default:
		return FilterAll
	}
}

// Visible keeps the assets identity is allowed to see: public ones, ones it
// owns, and ones proposed to it. The gateway enforces the real rule; this
// keeps the rendered lists consistent with it.
func Visible(assets []Asset, identity string) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.IsPublic() || a.OwnerID == identity || (a.ProposedOwnerID != "" && a.ProposedOwnerID == identity) {
			out = append(out, a)
		}
	}
	return out
}

// Apply narrows assets to the requested scope relative to identity.
func Apply(assets []Asset, identity string, f Filter) []Asset {
	if f == FilterAll {
		return assets
	}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if matches(a, identity, f) {
			out = append(out, a)
		}
	}
	return out
}

func matches(a Asset, identity string, f Filter) bool {
	switch f {
	case FilterOwned, FilterMine:
		return identity != "" && a.OwnerID == identity
	case FilterPending:
		return a.IsPending()
	case FilterPublic:
		return a.IsPublic()
	case FilterIncoming:
		return identity != "" && a.ProposedOwnerID == identity
	case FilterOutgoing:
		return identity != "" && a.OwnerID == identity && a.IsPending()
	default:
		return true
	}
}

// Search keeps assets whose name or ID contains query, case-insensitively.
// An empty query keeps everything.
func Search(assets []Asset, query string) []Asset {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return assets
	}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), query) || strings.Contains(strings.ToLower(a.ID), query) {
			out = append(out, a)
		}
	}
	return out
}

// PageSize is the fixed number of rows per admin table page.
const PageSize = 8

// Paginate slices items into the requested 1-based page of the given size.
// The page number is clamped into range, and the collection is never queried
// server-side: pagination is a pure function of the already-fetched list.
func Paginate[T any](items []T, page, size int) (pageItems []T, current, totalPages int) {
	if size <= 0 {
		size = PageSize
	}
	totalPages = (len(items) + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page, totalPages
}
