// Package ops holds the validated operations shared by the CLI, the MCP server
// and the web UI. Every operation validates its input before touching the
// backend, so a rejected input never produces a request.
package ops

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/folio/internal/errors"
)

// Field limits.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 2000
)

// validate runs ozzo-validation rules and maps failures to INVALID_REQUEST.
// The message names each failing field in a stable order.
func validate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !stderrors.As(err, &verrs) {
		return errors.NewInvalidRequest(err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	details := make(map[string]any, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", f, verrs[f].Error()))
		details[f] = verrs[f].Error()
	}
	e := errors.NewInvalidRequest(strings.Join(parts, "; "))
	e.Details = details
	return e
}

// nameRules are applied to every user-supplied name after trimming.
func nameRules() []validation.Rule {
	return []validation.Rule{validation.Required, validation.Length(1, MaxNameLength)}
}

// idRule rejects non-positive ids.
var idRule = validation.Min(int64(1))

// checkCreated rejects a create response that carries no id. Binding to id 0
// would point every later write at an entity that does not exist.
func checkCreated(kind, path string, id int64) error {
	if id > 0 {
		return nil
	}
	return errors.NewUpstream(http.MethodPost, path, http.StatusBadGateway, fmt.Sprintf("backend created a %s without returning its id", kind))
}
