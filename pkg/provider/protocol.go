package provider

// Wire types shared by the HTTP provider and the reference server.
// Content travels base64-encoded inside JSON ([]byte marshaling).

// CreateFileRequest is the body of POST /v1/folders/{id}/files.
type CreateFileRequest struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// UpdateFileRequest is the body of PUT /v1/files/{id}.
type UpdateFileRequest struct {
	Content []byte `json:"content"`
}

// FilePayload is returned by file reads and writes. Content is set only
// by GET /v1/files/{id}.
type FilePayload struct {
	File    File   `json:"file"`
	Content []byte `json:"content,omitempty"`
}

// ListFilesResponse is returned by GET /v1/folders/{id}/files.
type ListFilesResponse struct {
	Files []File `json:"files"`
}

// FolderRequest is the body of POST /v1/folders.
type FolderRequest struct {
	Name string `json:"name"`
}

// FolderResponse is returned by POST /v1/folders.
type FolderResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
