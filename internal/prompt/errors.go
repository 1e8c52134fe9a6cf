package prompt

// errInvalidTemplateUsage signals a request whose fields do not fit the
// selected template (400 mapping in the HTTP layer).
type errInvalidTemplateUsage struct {
	tmpl   Template
	reason string
}

func (e errInvalidTemplateUsage) Error() string {
	return "invalid template usage (" + string(e.tmpl) + "): " + e.reason
}

// IsInvalidTemplateUsage reports whether err came from template validation.
func IsInvalidTemplateUsage(err error) bool {
	_, ok := err.(errInvalidTemplateUsage)
	return ok
}
