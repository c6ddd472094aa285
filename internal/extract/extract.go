// Package extract turns cached listing pages into course records. It only
// sees page text; fetching and caching happen elsewhere.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnexpectedMarkup 表示页面缺少预期的节点或字段格式不符。
var ErrUnexpectedMarkup = errors.New("unexpected markup")

// Course is one listing item.
type Course struct {
	Location   string      `json:"location"`
	Title      string      `json:"title"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Deadline   *time.Time  `json:"deadline,omitempty"`
	LastMinute *LastMinute `json:"last_minute,omitempty"`
}

// LastMinute describes remaining short-notice seats and where to book them.
type LastMinute struct {
	URL   string `json:"url"`
	Seats int    `json:"seats"`
}

// Page is the extraction result for one listing page. NextPage is empty on
// the last page and may be relative to the site's base URL.
type Page struct {
	NextPage string
	Courses  []Course
}

// Extractor parses one page of text.
type Extractor interface {
	Extract(text string) (Page, error)
}

const (
	dateTimeLayout = "02.01.2006, 15:04 Uhr"
	dateLayout     = "02.01.2006"
	seatsPrefix    = "Noch"
	seatsSuffix    = "Last-Minute-Plätze verfügbar"
)

var weekdays = map[string]struct{}{
	"Mo": {}, "Di": {}, "Mi": {}, "Do": {}, "Fr": {}, "Sa": {}, "So": {},
}

// CourseList extracts the course listing markup. Timestamps on the page carry
// no zone and are interpreted in Location (UTC when nil).
type CourseList struct {
	Location *time.Location
}

// Extract implements Extractor.
func (l CourseList) Extract(text string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return Page{}, fmt.Errorf("parse page: %w", err)
	}

	list, err := required(doc.Selection, "div.courseList")
	if err != nil {
		return Page{}, err
	}

	next, err := nextPage(list)
	if err != nil {
		return Page{}, err
	}

	courses, err := l.courses(list)
	if err != nil {
		return Page{}, err
	}

	return Page{NextPage: next, Courses: courses}, nil
}

func nextPage(list *goquery.Selection) (string, error) {
	nav, err := required(list, "div.navIndex")
	if err != nil {
		return "", err
	}
	if _, err := required(nav, "ul.advancedSearch.left"); err != nil {
		return "", err
	}

	forward := nav.Find("a.forward").First()
	if forward.Length() == 0 {
		return "", nil
	}
	href, ok := forward.Attr("href")
	if !ok {
		return "", fmt.Errorf("%w: a.forward without href", ErrUnexpectedMarkup)
	}
	return strings.TrimSpace(href), nil
}

func (l CourseList) courses(list *goquery.Selection) ([]Course, error) {
	teasers, err := required(list, "div.teaserlist")
	if err != nil {
		return nil, err
	}

	courses := []Course{}
	var itemErr error
	teasers.Find("div.teaser.course").EachWithBreak(func(i int, node *goquery.Selection) bool {
		course, err := l.course(node)
		if err != nil {
			itemErr = fmt.Errorf("course #%d: %w", i, err)
			return false
		}
		courses = append(courses, course)
		return true
	})
	if itemErr != nil {
		return nil, itemErr
	}
	return courses, nil
}

func (l CourseList) course(node *goquery.Selection) (Course, error) {
	var course Course

	location, err := required(node, "span.metadata")
	if err != nil {
		return Course{}, err
	}
	course.Location = cleanText(location.Text())

	heading, err := required(node, "h2")
	if err != nil {
		return Course{}, err
	}
	if link := heading.Find("a").First(); link.Length() > 0 {
		course.Title = cleanText(link.Text())
	} else {
		course.Title = cleanText(heading.Text())
	}

	dates := node.Find("dl.docData").Not(".courseAction").First().Find("dd")
	if dates.Length() < 2 {
		return Course{}, fmt.Errorf("%w: expected start and end dates", ErrUnexpectedMarkup)
	}
	if course.Start, err = l.parseDateTime(dates.Eq(0).Text()); err != nil {
		return Course{}, err
	}
	if course.End, err = l.parseDateTime(dates.Eq(1).Text()); err != nil {
		return Course{}, err
	}

	if registration := node.Find("dl.courseAction.docData").First(); registration.Length() > 0 {
		dd := registration.Find("dd").First()
		if dd.Length() == 0 {
			return Course{}, fmt.Errorf("%w: registration without deadline", ErrUnexpectedMarkup)
		}
		deadline, err := time.ParseInLocation(dateLayout, cleanText(dd.Text()), l.location())
		if err != nil {
			return Course{}, fmt.Errorf("%w: deadline: %v", ErrUnexpectedMarkup, err)
		}
		course.Deadline = &deadline
	}

	if action := node.Find("p.courseAction").First(); action.Length() > 0 {
		offer, err := lastMinute(action)
		if err != nil {
			return Course{}, err
		}
		course.LastMinute = offer
	}

	return course, nil
}

func lastMinute(action *goquery.Selection) (*LastMinute, error) {
	link, err := required(action, "a")
	if err != nil {
		return nil, err
	}
	href, _ := link.Attr("href")

	raw := cleanText(link.Text())
	raw = strings.TrimPrefix(raw, seatsPrefix)
	raw = strings.TrimSuffix(raw, seatsSuffix)
	seats, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: last minute seats %q", ErrUnexpectedMarkup, link.Text())
	}
	return &LastMinute{URL: href, Seats: seats}, nil
}

// parseDateTime 解析形如 "Mo. 02.01.2006, 15:04 Uhr" 的时间。
func (l CourseList) parseDateTime(raw string) (time.Time, error) {
	text := cleanText(raw)
	day, rest, ok := strings.Cut(text, ". ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrUnexpectedMarkup, text)
	}
	if _, known := weekdays[day]; !known {
		return time.Time{}, fmt.Errorf("%w: weekday %q", ErrUnexpectedMarkup, day)
	}
	parsed, err := time.ParseInLocation(dateTimeLayout, rest, l.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrUnexpectedMarkup, text, err)
	}
	return parsed, nil
}

func (l CourseList) location() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

func required(sel *goquery.Selection, selector string) (*goquery.Selection, error) {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s not found", ErrUnexpectedMarkup, selector)
	}
	return found, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
