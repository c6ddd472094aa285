package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/coursewatch/watch/internal/extract"
)

// Crawler follows "next page" links from an entry point until a page is
// unavailable or the listing ends.
type Crawler struct {
	Cache     ContentCache
	Fetcher   PageFetcher
	Extractor extract.Extractor
	Logger    *logrus.Logger
}

// Crawl returns the courses of every reachable page in order. A page that
// cannot be fetched ends the crawl without an error; a cancelled context
// always surfaces as one.
func (c Crawler) Crawl(ctx context.Context, baseURL, entryPoint string) ([]extract.Course, error) {
	if c.Cache == nil || c.Fetcher == nil || c.Extractor == nil {
		return nil, errors.New("crawler requires cache, fetcher and extractor")
	}
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	courses := []extract.Course{}
	visited := make(map[string]struct{})
	next := entryPoint
	for next != "" {
		if err := ctx.Err(); err != nil {
			return courses, err
		}

		ref, err := url.Parse(next)
		if err != nil {
			return courses, fmt.Errorf("parse next page %q: %w", next, err)
		}
		pageURL := base.ResolveReference(ref).String()
		if _, seen := visited[pageURL]; seen {
			logger.WithFields(logrus.Fields{"action": "crawl_loop", "url": pageURL}).Warn("page already visited")
			break
		}
		visited[pageURL] = struct{}{}

		content, ok, err := GetContent(ctx, c.Cache, c.Fetcher, pageURL)
		if err != nil {
			return courses, err
		}
		if !ok {
			if err := ctx.Err(); err != nil {
				return courses, err
			}
			logger.WithFields(logrus.Fields{"action": "crawl_stop", "url": pageURL}).Warn("no content, stopping")
			break
		}

		page, err := c.Extractor.Extract(content)
		if err != nil {
			return courses, fmt.Errorf("extract %s: %w", pageURL, err)
		}
		courses = append(courses, page.Courses...)
		logger.WithFields(logrus.Fields{
			"action":  "crawl_page",
			"url":     pageURL,
			"courses": len(page.Courses),
		}).Info("page extracted")

		next = page.NextPage
	}

	return courses, nil
}
