// Package views derives render-ready projections from a working-set
// snapshot. Every function here is pure: snapshot in, values out, no side
// effects and no store access.
package views

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/asilva/triage/internal/model"
)

// FilterBy narrows a filtered view beyond the search term.
type FilterBy string

const (
	FilterAll     FilterBy = "all"
	FilterUnread  FilterBy = "unread"
	FilterStarred FilterBy = "starred"
)

// Criteria combines a search term with a read/star filter. Both predicates
// must hold for an email to pass.
type Criteria struct {
	SearchTerm string
	FilterBy   FilterBy
}

// Bucket returns the emails belonging to one urgency column, preserving
// snapshot order. The processed column is the one bucket with mixed
// membership: processed received mail first, then every sent/reply
// message (which are processed by construction).
func Bucket(snapshot []model.Email, urgency model.Urgency) []model.Email {
	var out []model.Email

	if urgency != model.UrgencyProcessed {
		for _, e := range snapshot {
			if e.Received() && e.Urgency == urgency {
				out = append(out, e)
			}
		}
		return out
	}

	for _, e := range snapshot {
		if e.Received() && e.Urgency == model.UrgencyProcessed {
			out = append(out, e)
		}
	}
	for _, e := range snapshot {
		if !e.Received() {
			out = append(out, e)
		}
	}
	return out
}

// Columns partitions a snapshot into the five board columns in display
// order. The columns are pairwise disjoint and jointly cover the
// snapshot.
func Columns(snapshot []model.Email) map[model.Urgency][]model.Email {
	out := make(map[model.Urgency][]model.Email, len(model.Urgencies))
	for _, u := range model.Urgencies {
		out[u] = Bucket(snapshot, u)
	}
	return out
}

// Filter returns the emails matching the criteria. The search term
// matches case-insensitively against subject or sender display; an empty
// term matches everything.
func Filter(snapshot []model.Email, c Criteria) []model.Email {
	term := strings.ToLower(c.SearchTerm)

	var out []model.Email
	for _, e := range snapshot {
		if term != "" &&
			!strings.Contains(strings.ToLower(e.Subject), term) &&
			!strings.Contains(strings.ToLower(e.SenderDisplay), term) {
			continue
		}

		switch c.FilterBy {
		case FilterUnread:
			if e.IsRead {
				continue
			}
		case FilterStarred:
			if !e.IsStarred {
				continue
			}
		}

		out = append(out, e)
	}
	return out
}

// Stats computes aggregate counts over a snapshot from scratch.
// Recomputing beats incremental counters at this scale; there is nothing
// to drift.
func Stats(snapshot []model.Email) model.Stats {
	stats := model.Stats{
		Total:     len(snapshot),
		ByUrgency: make(map[model.Urgency]int, len(model.Urgencies)),
	}
	for _, u := range model.Urgencies {
		stats.ByUrgency[u] = 0
	}

	for _, e := range snapshot {
		if !e.IsRead {
			stats.Unread++
		}
		if e.IsStarred {
			stats.Starred++
		}
		if e.Received() {
			stats.ByUrgency[e.Urgency]++
		} else {
			stats.ByUrgency[model.UrgencyProcessed]++
		}
	}
	return stats
}

// RankedSearch fuzzy-matches the term against "subject sender" haystacks
// and returns matching emails ordered by descending match score. Unlike
// Filter it tolerates typos and skipped characters; the dashboard uses it
// for interactive search-as-you-type.
func RankedSearch(snapshot []model.Email, term string) []model.Email {
	if strings.TrimSpace(term) == "" {
		return snapshot
	}

	haystacks := make([]string, len(snapshot))
	for i, e := range snapshot {
		haystacks[i] = e.Subject + " " + e.SenderDisplay
	}

	matches := fuzzy.Find(term, haystacks)
	out := make([]model.Email, 0, len(matches))
	for _, m := range matches {
		out = append(out, snapshot[m.Index])
	}
	return out
}
