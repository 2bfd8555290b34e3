package models

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

// PriorityAll disables the priority filter.
const PriorityAll Priority = "all"

type SortField string

const (
	SortByPriority  SortField = "priority"
	SortByTitle     SortField = "title"
	SortByCreatedAt SortField = "created_at"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery describes a task listing. Zero values mean "not applied".
// When NoTags is set, Tags is ignored.
type ListQuery struct {
	Search    string
	Status    StatusFilter
	Priority  Priority
	Tags      []string
	NoTags    bool
	SortField SortField
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// ListResult is one page of tasks plus the unfiltered and filtered counts.
type ListResult struct {
	Tasks    []*Task `json:"tasks"`
	Total    int     `json:"total"`
	Filtered int     `json:"filtered"`
}

// Normalize fills defaults and rejects unknown enum values.
func (q ListQuery) Normalize() (ListQuery, error) {
	switch q.Status {
	case "":
		q.Status = StatusAll
	case StatusAll, StatusPending, StatusCompleted:
	default:
		return q, NewValidationError("status", "status must be one of all, pending, completed")
	}

	switch q.Priority {
	case "":
		q.Priority = PriorityAll
	case PriorityAll, PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return q, NewValidationError("priority", "priority must be one of all, none, low, medium, high")
	}

	switch q.SortField {
	case "":
		q.SortField = SortByPriority
	case SortByPriority, SortByTitle, SortByCreatedAt:
	default:
		return q, NewValidationError("sort", "sort must be one of priority, title, created_at")
	}

	switch q.SortOrder {
	case "":
		// created_at defaults to newest first
		if q.SortField == SortByCreatedAt {
			q.SortOrder = SortDesc
		} else {
			q.SortOrder = SortAsc
		}
	case SortAsc, SortDesc:
	default:
		return q, NewValidationError("order", "order must be asc or desc")
	}

	if q.Limit < 0 {
		return q, NewValidationError("limit", "limit cannot be negative")
	}
	if q.Offset < 0 {
		return q, NewValidationError("offset", "offset cannot be negative")
	}
	if q.NoTags {
		q.Tags = nil
	}
	return q, nil
}
