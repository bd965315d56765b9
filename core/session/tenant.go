package session

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shule-app/shule/identity"
)

// TenantID names one school, the unit of data isolation. The zero value means
// "no tenant".
type TenantID int64

func (t TenantID) String() string { return strconv.FormatInt(int64(t), 10) }

// tenantKeys are the metadata keys probed for the school id, in order of
// precedence. Both spellings exist in the wild because of provider naming
// drift at signup time.
var tenantKeys = []string{"school_id", "schoolId"}

// ExtractTenant resolves a Principal to its TenantID. It returns (0, false)
// when the principal is nil, no accepted key is present, or the value does
// not coerce to a positive integer. It never substitutes a default tenant:
// a missing school id must surface as "no tenant", not as somebody else's.
func ExtractTenant(p *identity.Principal) (TenantID, bool) {
	if p == nil || p.Metadata == nil {
		return 0, false
	}
	for _, key := range tenantKeys {
		raw, ok := p.Metadata[key]
		if !ok {
			continue
		}
		return coerceTenant(raw)
	}
	return 0, false
}

func coerceTenant(raw interface{}) (TenantID, bool) {
	var id int64
	switch v := raw.(type) {
	case int:
		id = int64(v)
	case int64:
		id = v
	case float64:
		id = int64(v)
		if float64(id) != v {
			return 0, false
		}
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return TenantID(id), true
}
