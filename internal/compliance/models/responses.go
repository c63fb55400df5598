package models

// ErrorResponse is the generic admin API error body.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// ModuleListResponse lists a token's enabled modules in evaluation order.
type ModuleListResponse struct {
	Token   string                    `json:"token"`
	Modules []*ComplianceModuleConfig `json:"modules"`
}
