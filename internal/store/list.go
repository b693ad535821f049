// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ListFilter is the shared list predicate for content tables. Zero values
// mean "no filter". Limit <= 0 returns every row.
type ListFilter struct {
	Status   string
	Category string
	Search   string
	Featured *bool
	Tag      string
	Limit    int
	Offset   int
}

// tableSpec describes how a content table is listed.
type tableSpec struct {
	table      string
	columns    []string
	searchCols []string
	orderBy    []string
	listCol    string // JSON array column matched by ListFilter.Tag
	hasFeature bool
	hasCat     bool
}

// where applies f to b.
func (s tableSpec) where(b sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.Category != "" && s.hasCat {
		b = b.Where(sq.Eq{"category": f.Category})
	}
	if f.Featured != nil && s.hasFeature {
		b = b.Where(sq.Eq{"featured": boolInt(*f.Featured)})
	}
	if f.Tag != "" && s.listCol != "" {
		b = b.Where("EXISTS (SELECT 1 FROM json_each("+s.table+"."+s.listCol+") WHERE json_each.value = ?)", f.Tag)
	}
	if term := strings.TrimSpace(f.Search); term != "" && len(s.searchCols) > 0 {
		pattern := "%" + escapeLike(term) + "%"
		or := sq.Or{}
		for _, col := range s.searchCols {
			or = append(or, sq.Expr(col+" LIKE ? ESCAPE '\\'", pattern))
		}
		b = b.Where(or)
	}
	return b
}

// selectList builds the paged SELECT for f.
func (s tableSpec) selectList(f ListFilter) sq.SelectBuilder {
	b := s.where(psql.Select(s.columns...).From(s.table), f).OrderBy(s.orderBy...)
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit)).Offset(uint64(max(f.Offset, 0)))
	}
	return b
}

// selectCount builds the COUNT(*) for f.
func (s tableSpec) selectCount(f ListFilter) sq.SelectBuilder {
	return s.where(psql.Select("COUNT(*)").From(s.table), f)
}

func (s tableSpec) selectOne() sq.SelectBuilder {
	return psql.Select(s.columns...).From(s.table).Limit(1)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
