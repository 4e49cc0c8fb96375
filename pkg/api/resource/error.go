package resource

type ErrorResource struct {
	Error string `json:"error"`
}

func NewError(err error) *ErrorResource {
	return &ErrorResource{Error: err.Error()}
}
