package models

// RoleCount is the number of top-level posts written under a role.
type RoleCount struct {
	Role  Role `json:"role" db:"role"`
	Count int  `json:"count" db:"count"`
}

// CommunityStats is recomputed from the message store on every request.
type CommunityStats struct {
	TotalMessages     int                  `json:"totalMessages"`
	TotalReplies      int                  `json:"totalReplies"`
	TotalUsers        int                  `json:"totalUsers"`
	RoleStats         []RoleCount          `json:"roleStats"`
	SubcommunityStats []SubcommunityCounts `json:"subcommunityStats,omitempty"`
}
