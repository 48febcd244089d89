// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// ListAuthors fetches up to max authors affiliated with the configured
// institution, most-cited first, using cursor pagination. The sequence
// ends at the cap, when the server stops issuing a next cursor, or on an
// empty page.
func (c *Client) ListAuthors(ctx context.Context, max int) ([]types.Author, error) {
	if max <= 0 {
		return nil, fmt.Errorf("author cap must be positive, got %d", max)
	}

	var authors []types.Author
	cursor := "*"

	for len(authors) < max {
		params := url.Values{
			"filter":   {"affiliations.institution.ror:" + c.cfg.InstitutionROR},
			"per-page": {fmt.Sprintf("%d", clampPerPage(max-len(authors)))},
			"cursor":   {cursor},
			"sort":     {"cited_by_count:desc"},
		}

		var page authorsResponse
		if err := c.getPage(ctx, c.authorLimiter, "/authors", params, &page); err != nil {
			return nil, err
		}

		if len(page.Results) == 0 {
			break
		}

		for _, item := range page.Results {
			if len(authors) >= max {
				break
			}
			authors = append(authors, item.toAuthor())
		}

		if page.Meta.NextCursor == "" {
			break
		}
		cursor = page.Meta.NextCursor
	}

	return authors, nil
}

// OpenAlex authors API JSON structures.
type authorsResponse struct {
	Meta    pageMeta    `json:"meta"`
	Results []apiAuthor `json:"results"`
}

type pageMeta struct {
	Count      int    `json:"count"`
	PerPage    int    `json:"per_page"`
	Page       int    `json:"page"`
	NextCursor string `json:"next_cursor"`
}

type apiAuthor struct {
	ID           string           `json:"id"`
	DisplayName  string           `json:"display_name"`
	WorksCount   int              `json:"works_count"`
	CitedByCount int              `json:"cited_by_count"`
	Affiliations []apiAffiliation `json:"affiliations"`
}

type apiAffiliation struct {
	Institution apiInstitution `json:"institution"`
}

type apiInstitution struct {
	ROR         string `json:"ror"`
	DisplayName string `json:"display_name"`
}

// toAuthor converts an API author to the record type, clipping every
// bounded field.
func (a apiAuthor) toAuthor() types.Author {
	affiliations := make([]string, 0, len(a.Affiliations))
	for _, aff := range a.Affiliations {
		affiliations = append(affiliations, types.Truncate(aff.Institution.DisplayName, types.MaxAffiliationLen))
	}
	return types.Author{
		ID:           types.Truncate(a.ID, types.MaxIDLen),
		Name:         types.Truncate(a.DisplayName, types.MaxNameLen),
		WorksCount:   a.WorksCount,
		CitedByCount: a.CitedByCount,
		Affiliations: affiliations,
	}
}
