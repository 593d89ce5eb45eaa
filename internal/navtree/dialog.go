package navtree

import "github.com/hpungsan/folio/internal/api"

// Dialog is the folder dialog currently shown. Exactly one value is active at
// a time: Closed, CreateDialog, RenameDialog or DeleteDialog.
type Dialog interface {
	dialog()
}

// Closed means no dialog is shown.
type Closed struct{}

// Inputs are the transient text fields of a create or rename dialog.
type Inputs struct {
	Name        string
	Description string
}

// CreateDialog creates a folder, under Parent when set.
type CreateDialog struct {
	Parent     *api.FolderSummary
	Inputs     Inputs
	Submitting bool
}

// RenameDialog renames Target. Current is the folder as it was loaded and
// supplies the fields the dialog does not edit.
type RenameDialog struct {
	Target     api.FolderSummary
	Current    api.Folder
	Inputs     Inputs
	Submitting bool
}

// DeleteDialog confirms deletion of Target.
type DeleteDialog struct {
	Target     api.FolderSummary
	Submitting bool
}

func (Closed) dialog()       {}
func (CreateDialog) dialog() {}
func (RenameDialog) dialog() {}
func (DeleteDialog) dialog() {}

// IsOpen reports whether d is anything but Closed.
func IsOpen(d Dialog) bool {
	_, closed := d.(Closed)
	return d != nil && !closed
}

func isSubmitting(d Dialog) bool {
	switch d := d.(type) {
	case CreateDialog:
		return d.Submitting
	case RenameDialog:
		return d.Submitting
	case DeleteDialog:
		return d.Submitting
	}
	return false
}

func inputsOf(d Dialog) (Inputs, bool) {
	switch d := d.(type) {
	case CreateDialog:
		return d.Inputs, true
	case RenameDialog:
		return d.Inputs, true
	}
	return Inputs{}, false
}

func withSubmitting(d Dialog, on bool) Dialog {
	switch d := d.(type) {
	case CreateDialog:
		d.Submitting = on
		return d
	case RenameDialog:
		d.Submitting = on
		return d
	case DeleteDialog:
		d.Submitting = on
		return d
	}
	return d
}

// NoticeKind distinguishes success from error toasts.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a user-facing toast.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

func success(msg string) *Notice { return &Notice{Kind: NoticeSuccess, Message: msg} }
func failure(msg string) *Notice { return &Notice{Kind: NoticeError, Message: msg} }

// Toast texts.
const (
	MsgNameRequired = "Folder name cannot be empty"
	MsgCreated      = "Folder created successfully"
	MsgCreateFailed = "Failed to create folder"
	MsgRenamed      = "Folder renamed successfully"
	MsgRenameFailed = "Failed to rename folder"
	MsgDeleted      = "Folder deleted successfully"
	MsgDeleteFailed = "Failed to delete folder"
	MsgLoadFailed   = "Failed to load folders"
)
