// Package rpc contains clients for the remote listing service: the rclone
// remote-control HTTP API and a direct S3 adapter speaking the same contract.
package rpc

import (
	"context"
	"strings"
)

// ListOptions mirrors the rc "opt" object for operations/list.
type ListOptions struct {
	NoModTime  bool `json:"noModTime"`
	NoMimeType bool `json:"noMimeType"`
}

// ListRequest asks for the entries of Remote inside the backend Fs ("name:").
type ListRequest struct {
	Fs     string      `json:"fs"`
	Remote string      `json:"remote"`
	Opt    ListOptions `json:"opt"`
}

// ListItem is one entry as returned by the service.
type ListItem struct {
	Path     string `json:"Path"`
	Name     string `json:"Name"`
	Size     int64  `json:"Size"`
	MimeType string `json:"MimeType,omitempty"`
	ModTime  string `json:"ModTime,omitempty"`
	IsDir    bool   `json:"IsDir"`
	IsBucket bool   `json:"IsBucket,omitempty"`
}

// ListResponse is the operations/list reply.
type ListResponse struct {
	List []ListItem `json:"list"`
}

// ListService is the remote listing collaborator.
type ListService interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

// FsName returns the "name:" form the service expects for a remote.
func FsName(remote string) string {
	return strings.TrimSuffix(remote, ":") + ":"
}

// Router sends each request to the service registered for its remote,
// falling back to Default.
type Router struct {
	Default  ListService
	Services map[string]ListService
}

// List implements ListService.
func (r *Router) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	name := strings.TrimSuffix(req.Fs, ":")
	if svc, ok := r.Services[name]; ok {
		return svc.List(ctx, req)
	}
	if r.Default == nil {
		return nil, &ServiceError{Status: 404, Message: "no listing service for " + req.Fs}
	}
	return r.Default.List(ctx, req)
}
