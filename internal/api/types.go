package api

import "time"

// Task is a task record as the server reports it.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority,omitempty"`
	BucketID      string     `json:"bucket_id,omitempty"`
	AssigneeID    string     `json:"assignee_id,omitempty"`
	AssigneeEmail string     `json:"assignee_email,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TaskStats is the server-computed dashboard aggregate.
type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
}

// User is an organization member.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Bucket groups tasks within an organization.
type Bucket struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Organization is a tenant, visible to super-admins only.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTaskRequest is the payload for task creation.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	BucketID    string     `json:"bucket_id,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// SignupRequest registers a new organization with its first admin.
type SignupRequest struct {
	OrganizationName string `json:"organization_name"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// PushRegistration associates a device token with the current user.
type PushRegistration struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
