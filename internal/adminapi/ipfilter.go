package adminapi

import (
	"fmt"
	"net/http"
	"net/netip"

	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/utils"
)

// IPFilter provides IP-based access control with allow/deny lists.
// Deny entries take precedence; an empty allow list admits everyone not denied.
type IPFilter struct {
	allowList []netip.Prefix
	denyList  []netip.Prefix
}

// NewIPFilter creates a new IP filter from CIDR blocks or single addresses
func NewIPFilter(allowList, denyList []string) (*IPFilter, error) {
	allow, err := utils.ParsePrefixes(allowList)
	if err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	deny, err := utils.ParsePrefixes(denyList)
	if err != nil {
		return nil, fmt.Errorf("deny list: %w", err)
	}
	return &IPFilter{allowList: allow, denyList: deny}, nil
}

// IsAllowed checks if the given IP address is allowed
func (f *IPFilter) IsAllowed(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range f.denyList {
		if p.Contains(addr) {
			return false
		}
	}
	if len(f.allowList) == 0 {
		return true
	}
	for _, p := range f.allowList {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware returns an HTTP middleware that filters requests based on IP
func (f *IPFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := utils.ClientIP(r)

		if !f.IsAllowed(clientIP) {
			logger := logging.WithContext(r.Context())
			logger.Warn().
				Str("client_ip", clientIP).
				Str("path", r.URL.Path).
				Msg("admin request blocked by ip filter")

			http.Error(w, "Forbidden: IP address not allowed", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
