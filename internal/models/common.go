package models

// User roles carried in JWT claims and checked by route guards.
const (
	RoleStudent = "student"
	RoleExpert  = "expert"
	RoleAdmin   = "admin"
)

// Attachment references a file held by the external object-storage
// collaborator. Only metadata and the stable URL are stored here.
type Attachment struct {
	Name   string `json:"name" validate:"required"`
	Format string `json:"format"`
	URL    string `json:"url" validate:"required,url"`
}
