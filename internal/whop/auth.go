package whop

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	reAppKeyPrefix  = regexp.MustCompile(`(?i)^apik_`)
	reCompanyMarker = regexp.MustCompile(`(?i)_C_`)
)

// Credentials are the upstream API keys. Either key may be empty.
type Credentials struct {
	AppKey     string
	CompanyKey string
	CompanyID  string
}

// HasKey reports whether any key is configured.
func (c Credentials) HasKey() bool {
	return strings.TrimSpace(c.AppKey) != "" || strings.TrimSpace(c.CompanyKey) != ""
}

// AuthHeaders builds request headers for the given credentials and returns
// warnings about likely misconfiguration.
//
// A company key is sent as "Company <key>". An app key counts as a company
// key only when it looks like one (apik_..._C_...) and a company id is set.
// Otherwise the app key is sent as a bearer token.
func AuthHeaders(c Credentials) (http.Header, []string) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	var warnings []string

	appKey := strings.TrimSpace(c.AppKey)
	companyID := strings.TrimSpace(c.CompanyID)
	companyKey := strings.TrimSpace(c.CompanyKey)

	if companyKey == "" && appKey != "" && companyID != "" &&
		reAppKeyPrefix.MatchString(appKey) && reCompanyMarker.MatchString(appKey) {
		companyKey = appKey
	}

	switch {
	case companyKey != "":
		h.Set("Authorization", "Company "+companyKey)
		if companyID == "" {
			warnings = append(warnings, "WHOP_COMPANY_ID is not set; some company-scoped calls may fail")
		}
	case appKey != "":
		h.Set("Authorization", "Bearer "+appKey)
	}

	if companyID != "" {
		h.Set("x-company-id", companyID)
	}
	return h, warnings
}

// MaskKey shortens a secret for display.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "NONE"
	}
	if len(key) <= 10 {
		return key[:min(len(key), 3)] + "..."
	}
	return key[:10] + "..."
}

// AccessHints lists the usual causes of a failed feed fetch.
var AccessHints = []string{
	"the chat id is incorrect",
	"the app is not installed in the company that owns the chat",
	"the app lacks 'Messages' read permission",
}
