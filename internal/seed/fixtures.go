// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
)

// Fixtures is the YAML fixture document. Items use the same field names
// as the API's JSON bodies:
//
//	projects:
//	  - title: Rebrand
//	    client: Acme
//	    status: published
//	company_info:
//	  - key: company.phone
//	    value: "+1 555 0100"
//	    value_type: text
//	    is_public: true
type Fixtures struct {
	Projects    []map[string]any `yaml:"projects"`
	Blog        []map[string]any `yaml:"blog"`
	Team        []map[string]any `yaml:"team"`
	Services    []map[string]any `yaml:"services"`
	CompanyInfo []map[string]any `yaml:"company_info"`
}

// Result counts what a fixture load did per collection.
type Result struct {
	Created map[string]int `json:"created"`
	Skipped map[string]int `json:"skipped"`
}

func newResult() *Result {
	return &Result{Created: map[string]int{}, Skipped: map[string]int{}}
}

// LoadFile reads a fixture document from path.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode reads a fixture document. Unknown top-level keys are an error.
func Decode(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixtures
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal fixtures: %w", err)
	}
	return &fx, nil
}

// Fixtures creates every item of fx. Content whose slug already exists is
// skipped; company info rows are upserted. The first invalid item stops
// the load.
func (s *Seeder) Fixtures(ctx context.Context, fx *Fixtures) (*Result, error) {
	res := newResult()
	src := service.Source{RequestURL: "seed:fixtures"}

	if err := loadContent(ctx, s.projects, fx.Projects, src, res); err != nil {
		return res, err
	}
	if err := loadContent(ctx, s.blog, fx.Blog, src, res); err != nil {
		return res, err
	}
	if err := loadContent(ctx, s.team, fx.Team, src, res); err != nil {
		return res, err
	}
	if err := loadContent(ctx, s.services, fx.Services, src, res); err != nil {
		return res, err
	}

	for i, raw := range fx.CompanyInfo {
		var c model.CompanyInfo
		if err := convert(raw, &c); err != nil {
			return res, fmt.Errorf("company_info[%d]: %w", i, err)
		}
		if c.ValueType == "" {
			c.ValueType = model.ValueTypeText
		}
		if err := c.Validate(); err != nil {
			return res, fmt.Errorf("company_info[%d] %q: %w", i, c.Key, err)
		}
		created, err := s.queries.UpsertCompanyInfo(ctx, &c)
		if err != nil {
			return res, fmt.Errorf("company_info[%d] %q: %w", i, c.Key, err)
		}
		if created {
			res.Created["company_info"]++
		} else {
			res.Skipped["company_info"]++
		}
	}
	if len(fx.CompanyInfo) > 0 {
		s.invalidate(ctx, cache.TagCompany)
	}

	s.logger.Info("fixtures loaded", "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

func loadContent[T model.Content](ctx context.Context, svc *service.ContentService[T], items []map[string]any, src service.Source, res *Result) error {
	kind := svc.Kind()
	for i, raw := range items {
		item := kind.New()
		if err := convert(raw, item); err != nil {
			return fmt.Errorf("%s[%d]: %w", kind.Name, i, err)
		}
		if slug := item.GetSlug(); slug != "" {
			taken, err := kind.SlugExists(ctx, slug, 0)
			if err != nil {
				return err
			}
			if taken {
				res.Skipped[kind.Name]++
				continue
			}
		}
		if _, err := svc.Create(ctx, item, src); err != nil {
			return fmt.Errorf("%s[%d] %q: %w", kind.Name, i, item.GetTitle(), err)
		}
		res.Created[kind.Name]++
	}
	return nil
}

// convert maps a decoded YAML item onto dst through its JSON tags.
func convert(raw map[string]any, dst any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
