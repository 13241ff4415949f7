package jobcard

import (
	"regexp"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/pkg/fn"
)

// Row is one line of the job-card table.
type Row struct {
	ID                 string    `json:"id"`
	RegistrationNumber string    `json:"registration_number"`
	CustomerName       string    `json:"customer_name,omitempty"`
	CustomerPhone      string    `json:"customer_phone,omitempty"`
	Status             Status    `json:"status"`
	Priority           string    `json:"priority,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Filter is the table's search box and dropdowns. Zero value matches all.
type Filter struct {
	SearchQuery string `json:"search_query,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Apply returns the rows matching every predicate of f, in input order.
func Apply(rows []Row, f Filter) []Row {
	return fn.Filter(rows, f.Match)
}

// Match reports whether r passes f.
func (f Filter) Match(r Row) bool {
	return f.matchSearch(r) && f.matchStatus(r) && f.matchPriority(r)
}

func (f Filter) matchSearch(r Row) bool {
	q := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	if q == "" {
		return true
	}
	for _, field := range []string{r.RegistrationNumber, r.CustomerName, r.CustomerPhone, r.ID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	// "mh 01" finds MH01AB1234. Only a state code plus digit is treated as a
	// plate; "a b" must not match every plate containing AB.
	if nq := domain.NormalizeRegistration(q); platePrefix.MatchString(nq) {
		return strings.HasPrefix(domain.NormalizeRegistration(r.RegistrationNumber), nq)
	}
	return false
}

var platePrefix = regexp.MustCompile(`^[A-Z]{2}[0-9]`)

func (f Filter) matchStatus(r Row) bool {
	s := strings.TrimSpace(f.Status)
	if s == "" || strings.EqualFold(s, "ALL") {
		return true
	}
	want, err := ParseStatus(s)
	if err != nil {
		return false
	}
	return NormalizeStatus(string(r.Status)) == want
}

func (f Filter) matchPriority(r Row) bool {
	p := strings.TrimSpace(f.Priority)
	if p == "" || strings.EqualFold(p, "ALL") {
		return true
	}
	return strings.EqualFold(p, r.Priority)
}
