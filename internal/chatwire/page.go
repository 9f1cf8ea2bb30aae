package chatwire

// Page is the paginated collection shape used by list endpoints.
type Page[T any] struct {
	Content          []T  `json:"content"`
	TotalPages       int  `json:"totalPages"`
	TotalElements    int  `json:"totalElements"`
	Size             int  `json:"size"`
	Number           int  `json:"number"`
	NumberOfElements int  `json:"numberOfElements"`
	First            bool `json:"first"`
	Last             bool `json:"last"`
	Empty            bool `json:"empty"`
}

// NewPage assembles a Page from one slice of results.
func NewPage[T any](content []T, page, size, total int) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return Page[T]{
		Content:          content,
		TotalPages:       totalPages,
		TotalElements:    total,
		Size:             size,
		Number:           page,
		NumberOfElements: len(content),
		First:            page == 0,
		Last:             page >= totalPages-1,
		Empty:            len(content) == 0,
	}
}
