package api

// Audit holds the bookkeeping fields the backend stamps on every resource.
type Audit struct {
	CreatedAt string `json:"createdAt"`
	CreatedID string `json:"createdId"`
	UpdatedAt string `json:"updatedAt"`
	UpdatedID string `json:"updatedId"`
}

// FolderSummary is a child folder reference embedded in a Folder.
type FolderSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FeatureSummary is a feature reference embedded in a Folder.
type FeatureSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Folder is the backend's folder response.
type Folder struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	ParentID     *int64           `json:"parentId,omitempty"`
	ParentName   *string          `json:"parentName,omitempty"`
	ChildFolders []FolderSummary  `json:"childFolders"`
	Features     []FeatureSummary `json:"features"`
	Audit
}

// FolderRequest creates or updates a folder.
type FolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parentId,omitempty"`
}

// Feature is the backend's feature response. The template prompt is linked by id
// with a snapshot of its name and content; the SQL query and sequence diagram are
// embedded inline.
type Feature struct {
	ID                     int64   `json:"id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	FolderID               *int64  `json:"folderId,omitempty"`
	FolderName             *string `json:"folderName,omitempty"`
	TemplatePromptID       *int64  `json:"templatePromptId,omitempty"`
	TemplatePromptName     *string `json:"templatePromptName,omitempty"`
	TemplatePromptContent  *string `json:"templatePromptContent,omitempty"`
	SequenceDiagramID      *int64  `json:"sequenceDiagramId,omitempty"`
	SequenceDiagramName    *string `json:"sequenceDiagramName,omitempty"`
	SequenceDiagramContent *string `json:"sequenceDiagramContent,omitempty"`
	SQLQueryID             *int64  `json:"sqlQueryId,omitempty"`
	SQLQueryName           *string `json:"sqlQueryName,omitempty"`
	SQLQueryContent        *string `json:"sqlQueryContent,omitempty"`
	Audit
}

// FeatureRequest creates or updates a feature.
type FeatureRequest struct {
	Name                   string `json:"name"`
	Description            string `json:"description"`
	FolderID               *int64 `json:"folderId,omitempty"`
	TemplatePromptID       *int64 `json:"templatePromptId,omitempty"`
	SequenceDiagramName    string `json:"sequenceDiagramName,omitempty"`
	SequenceDiagramContent string `json:"sequenceDiagramContent,omitempty"`
	SQLQueryName           string `json:"sqlQueryName,omitempty"`
	SQLQueryContent        string `json:"sqlQueryContent,omitempty"`
	SequenceDiagramID      *int64 `json:"sequenceDiagramId,omitempty"`
	SQLQueryID             *int64 `json:"sqlQueryId,omitempty"`
}

// TemplatePrompt is a reusable text template.
type TemplatePrompt struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PromptContent string `json:"promptContent"`
	Audit
}

// TemplatePromptRequest creates or updates a template prompt.
type TemplatePromptRequest struct {
	Name          string `json:"name"`
	PromptContent string `json:"promptContent"`
}

// SQLQuery is a standalone SQL query artifact.
type SQLQuery struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	QueryContent string `json:"queryContent"`
	Audit
}

// SQLQueryRequest creates or updates a SQL query.
type SQLQueryRequest struct {
	Name         string `json:"name"`
	QueryContent string `json:"queryContent"`
}

// SequenceDiagram is a standalone sequence-diagram artifact.
type SequenceDiagram struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	SequenceDiagramContent string `json:"sequenceDiagramContent"`
	Audit
}

// SequenceDiagramRequest creates or updates a sequence diagram.
type SequenceDiagramRequest struct {
	Name                   string `json:"name"`
	SequenceDiagramContent string `json:"sequenceDiagramContent"`
}

// Hello is the demo endpoint's response.
type Hello struct {
	Message string `json:"message"`
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
