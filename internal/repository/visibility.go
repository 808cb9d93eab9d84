package repository

import (
	"sort"
	"strings"

	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

const (
	maxPageSize     = 200
	defaultPageSize = 20
)

// Visibility is the resolved access scope for one user: the union of
// that user's COM allocations, normalized for comparison.
type Visibility struct {
	Admin            bool
	AllowedDeviceIDs []string
	AllowedComPorts  []string
}

// NormalizeKey prepares a deviceId or comPort for comparison: trim and
// uppercase.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Empty reports whether a non-admin scope can match nothing.
func (v Visibility) Empty() bool {
	if v.Admin {
		return false
	}
	return len(v.AllowedDeviceIDs) == 0 || len(v.AllowedComPorts) == 0
}

// LoadVisibility resolves the scope for a user. Admins see everything;
// other users see the union of their non-deleted allocations.
func LoadVisibility(db *gorm.DB, userID uint, isAdmin bool) (Visibility, error) {
	if isAdmin {
		return Visibility{Admin: true}, nil
	}

	var allocations []model.ComAllocation
	if err := db.Where("user_id = ? AND is_deleted = ?", userID, false).Find(&allocations).Error; err != nil {
		return Visibility{}, err
	}

	deviceSet := make(map[string]struct{})
	portSet := make(map[string]struct{})
	for i := range allocations {
		if d := NormalizeKey(allocations[i].DeviceID); d != "" {
			deviceSet[d] = struct{}{}
		}
		for _, p := range ComPorts(&allocations[i]) {
			if p = NormalizeKey(p); p != "" {
				portSet[p] = struct{}{}
			}
		}
	}

	v := Visibility{
		AllowedDeviceIDs: setToSorted(deviceSet),
		AllowedComPorts:  setToSorted(portSet),
	}
	return v, nil
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ClampPage normalizes 1-based paging parameters.
func ClampPage(pageNumber, pageSize int) (int, int) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageNumber, pageSize
}

// Page is the shape of every list response.
type Page struct {
	TotalCount int64       `json:"totalCount"`
	PageNumber int         `json:"pageNumber"`
	PageSize   int         `json:"pageSize"`
	Data       interface{} `json:"data"`
}
