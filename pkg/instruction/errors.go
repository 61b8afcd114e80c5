package instruction

import "errors"

var (
	// ErrTemplateNotFound reports a missing required template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateFormat reports a failed placeholder substitution.
	ErrTemplateFormat = errors.New("template format error")
	// ErrTemplateCustomization reports a failed customization pass.
	ErrTemplateCustomization = errors.New("template customization error")
	// ErrInvalidInput reports malformed inputs to instruction generation.
	ErrInvalidInput = errors.New("invalid instruction input")
)
