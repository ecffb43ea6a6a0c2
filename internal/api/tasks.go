package api

import (
	"context"
	"net/http"
)

// ListTasks fetches the tasks visible to the current session.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks, callOpts{}); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches one task by ID.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+id, nil, &task, callOpts{}); err != nil {
		return Task{}, err
	}
	return task, nil
}

// CreateTask creates a task (admin only; the server enforces the role).
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &task, callOpts{}); err != nil {
		return Task{}, err
	}
	return task, nil
}

// UpdateTaskStatus moves a task through its lifecycle.
func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) (Task, error) {
	body := map[string]string{"status": status}
	var task Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+id, body, &task, callOpts{}); err != nil {
		return Task{}, err
	}
	return task, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil, callOpts{})
}

// TaskStats fetches the server-computed dashboard aggregate.
func (c *Client) TaskStats(ctx context.Context) (TaskStats, error) {
	var stats TaskStats
	if err := c.do(ctx, http.MethodGet, "/tasks/stats", nil, &stats, callOpts{}); err != nil {
		return TaskStats{}, err
	}
	return stats, nil
}

// ListUsers fetches the organization's members.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users, callOpts{}); err != nil {
		return nil, err
	}
	return users, nil
}

// ListBuckets fetches the organization's task buckets.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	var buckets []Bucket
	if err := c.do(ctx, http.MethodGet, "/buckets", nil, &buckets, callOpts{}); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ListOrganizations fetches all tenants (super-admin only).
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.do(ctx, http.MethodGet, "/super-admin/organizations", nil, &orgs, callOpts{}); err != nil {
		return nil, err
	}
	return orgs, nil
}
