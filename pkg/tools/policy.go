package tools

// Policy defines which tools a session may use. Deny entries override allow
// entries; "*" matches every tool.
type Policy struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// IsAllowed checks whether a tool passes the policy. A nil policy allows
// everything.
func (p *Policy) IsAllowed(toolName string) bool {
	if p == nil {
		return true
	}

	for _, denied := range p.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range p.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	return false
}
