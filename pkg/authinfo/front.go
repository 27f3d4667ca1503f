package authinfo

// FrontAuthenticationInfo is the unit of transport and storage: the
// credential plus the remember-me flag. RememberMe travels independently of
// trust level so it can be toggled before a login completes.
type FrontAuthenticationInfo struct {
	Info       AuthenticationInfo `json:"info"`
	RememberMe bool               `json:"rememberMe"`
}
