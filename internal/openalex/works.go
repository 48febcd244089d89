// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// ListWorks fetches up to max publications for the given author using
// page-index pagination. Works are sorted newest-publication-year-first,
// so the cap keeps the most recent items. The sequence ends at the cap,
// on an empty page, or on a short page.
func (c *Client) ListWorks(ctx context.Context, authorID string, max int) ([]types.Publication, error) {
	if max <= 0 {
		return nil, fmt.Errorf("publication cap must be positive, got %d", max)
	}

	// Page N's meaning depends on the page size, so per-page must stay
	// constant for the whole walk; shrinking it to the remaining budget
	// would re-read earlier items and skip later ones. Clamp once up
	// front and trim the overshoot from the final page instead.
	pageSize := perPage
	if max < pageSize {
		pageSize = max
	}

	var pubs []types.Publication

	for page := 1; len(pubs) < max; page++ {
		params := url.Values{
			"filter":   {"authorships.author.id:" + authorID},
			"per-page": {fmt.Sprintf("%d", pageSize)},
			"page":     {fmt.Sprintf("%d", page)},
			"sort":     {"publication_year:desc"},
		}

		var resp worksResponse
		if err := c.getPage(ctx, c.workLimiter, "/works", params, &resp); err != nil {
			return nil, err
		}

		if len(resp.Results) == 0 {
			break
		}

		for _, item := range resp.Results {
			if len(pubs) >= max {
				break
			}
			pubs = append(pubs, item.toPublication(authorID))
		}

		// A short page means the collection is exhausted.
		if len(resp.Results) < pageSize {
			break
		}
	}

	return pubs, nil
}

// OpenAlex works API JSON structures.
type worksResponse struct {
	Meta    pageMeta  `json:"meta"`
	Results []apiWork `json:"results"`
}

type apiWork struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	DOI                   string           `json:"doi"`
	PublicationYear       int              `json:"publication_year"`
	Authorships           []apiAuthorship  `json:"authorships"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	PrimaryLocation       apiLocation      `json:"primary_location"`
	OpenAccess            apiOpenAccess    `json:"open_access"`
}

type apiAuthorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type apiLocation struct {
	PDFURL string `json:"pdf_url"`
}

type apiOpenAccess struct {
	IsOA   bool   `json:"is_oa"`
	OAURL  string `json:"oa_url"`
	Status string `json:"oa_status"`
}

// toPublication converts an API work to the record type, clipping every
// bounded field. The abstract inverted index is stored as serialized
// JSON; prose reconstruction is deliberately not attempted.
func (w apiWork) toPublication(authorID string) types.Publication {
	names := make([]string, 0, len(w.Authorships))
	for _, as := range w.Authorships {
		names = append(names, types.Truncate(as.Author.DisplayName, types.MaxNameLen))
	}

	// Prefer the primary location's direct PDF link; fall back to the
	// open-access URL when the work is OA.
	pdfURL := w.PrimaryLocation.PDFURL
	if pdfURL == "" && w.OpenAccess.IsOA {
		pdfURL = w.OpenAccess.OAURL
	}

	var abstract string
	if len(w.AbstractInvertedIndex) > 0 {
		if data, err := json.Marshal(w.AbstractInvertedIndex); err == nil {
			abstract = types.Truncate(string(data), types.MaxAbstractLen)
		}
	}

	return types.Publication{
		ID:       types.Truncate(w.ID, types.MaxIDLen),
		Title:    types.Truncate(w.Title, types.MaxTitleLen),
		DOI:      types.Truncate(strings.TrimPrefix(w.DOI, "https://doi.org/"), types.MaxDOILen),
		Year:     w.PublicationYear,
		PDFURL:   types.Truncate(pdfURL, types.MaxURLLen),
		Authors:  names,
		Abstract: abstract,
		AuthorID: types.Truncate(authorID, types.MaxIDLen),
	}
}
