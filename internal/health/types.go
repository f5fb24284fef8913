package health

import "time"

// Status is the state of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) severity() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Category groups checks of the same kind.
type Category string

const (
	CategoryDownloadClients Category = "downloadClients"
	CategorySearch          Category = "search"
	CategoryStorage         Category = "storage"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryDownloadClients, CategorySearch, CategoryStorage}
}

// ParseCategory maps a path segment to a category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// binary categories have no warning state: slskd answers or it does not.
func (c Category) binary() bool {
	return c == CategoryDownloadClients
}

// Check is one tracked component.
type Check struct {
	Category Category `json:"category"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Message  string   `json:"message,omitempty"`
	// Since is when the check left OK. It survives message changes.
	Since *time.Time `json:"since,omitempty"`
	// Failures counts consecutive non-OK reports.
	Failures int `json:"failures,omitempty"`
}

// CategoryReport is the combined state of one category.
type CategoryReport struct {
	Category Category `json:"category"`
	Status   Status   `json:"status"`
	OK       int      `json:"ok"`
	Warning  int      `json:"warning"`
	Error    int      `json:"error"`
	Checks   []Check  `json:"checks,omitempty"`
}

func (r *CategoryReport) add(c Check) {
	switch c.Status {
	case StatusError:
		r.Error++
	case StatusWarning:
		r.Warning++
	default:
		r.OK++
	}
	r.Status = Worst(r.Status, c.Status)
}

// Report is the state of every category. Status is the worst of them.
type Report struct {
	Status     Status           `json:"status"`
	Categories []CategoryReport `json:"categories"`
}

// Category returns the report for c, or nil.
func (r *Report) Category(c Category) *CategoryReport {
	for i := range r.Categories {
		if r.Categories[i].Category == c {
			return &r.Categories[i]
		}
	}
	return nil
}

// Event types pushed to WebSocket clients.
const (
	EventUpdated = "health:updated"
	EventRemoved = "health:removed"
)
