package registry

import (
	"strings"
	"time"
)

// Asset status values. The ledger owns every transition; the console only
// observes them and requests changes through the gateway.
const (
	StatusActive          = "ACTIVE"
	StatusPendingTransfer = "PENDING_TRANSFER"
	StatusFrozen          = "FROZEN"
	StatusDeleted         = "DELETED"
)

// Asset visibility values controlling gallery inclusion.
const (
	ViewPublic  = "PUBLIC"
	ViewPrivate = "PRIVATE"
)

// Identity status values as reported by the admin endpoints.
const (
	IdentityPending = "PENDING"
	IdentityActive  = "ACTIVE"
	IdentityBanned  = "BANNED"
	IdentityDeleted = "DELETED"
)

// Roles assigned by the gateway. Never derived client-side.
const (
	RoleUser    = "user"
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// Asset is one registered artifact. Field names follow the ledger's JSON
// envelope, which the gateway passes through unmodified.
type Asset struct {
	ID              string    `json:"ID"`
	Name            string    `json:"Name"`
	Description     string    `json:"Description"`
	OwnerID         string    `json:"OwnerID"`
	ProposedOwnerID string    `json:"ProposedOwnerID,omitempty"`
	Status          string    `json:"Status"`
	View            string    `json:"View"`
	ImageURL        string    `json:"ImageURL"`
	ImageHash       string    `json:"ImageHash"`
	Attachment      string    `json:"Attachment,omitempty"`
	LastUpdatedBy   string    `json:"LastUpdatedBy"`
	LastUpdatedAt   time.Time `json:"LastUpdatedAt"`
}

// IsPending reports whether the asset sits in any pending state.
func (a Asset) IsPending() bool {
	return strings.Contains(a.Status, "PENDING")
}

// IsPublic reports whether the asset appears in the public gallery.
func (a Asset) IsPublic() bool {
	return strings.EqualFold(a.View, ViewPublic)
}

// CanPropose reports whether identity may propose a transfer of a. This mirrors
// the server-side rule; the server remains the sole arbiter and a rejected
// proposal surfaces as an error.
func (a Asset) CanPropose(identity string) bool {
	return a.Status == StatusActive && identity != "" && a.OwnerID == identity
}

// CanAccept reports whether identity is the proposed recipient of a pending
// transfer of a.
func (a Asset) CanAccept(identity string) bool {
	return a.Status == StatusPendingTransfer && identity != "" && a.ProposedOwnerID == identity
}

// HistoryRecord is one append-only provenance entry keyed by transaction id.
// Produced exclusively by the ledger; read-only here.
type HistoryRecord struct {
	TxID       string    `json:"TxId"`
	Timestamp  time.Time `json:"Timestamp"`
	ActorID    string    `json:"ActorID"`
	ActionType string    `json:"ActionType"`
	Value      *Asset    `json:"Value,omitempty"`
	IsDelete   bool      `json:"IsDelete"`
}

// Notification is a user-facing event; only the read flag is ever mutated,
// through the mark-read endpoint.
type Notification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the admin view of a registered user.
type Identity struct {
	Name     string `json:"name"`
	Org      string `json:"org"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	Email    string `json:"email"`
	Type     string `json:"type"`
	DBStatus string `json:"db_status"`
}

// Stats is the admin overview snapshot.
type Stats struct {
	TotalAssets      int `json:"total_assets"`
	TotalOwners      int `json:"total_owners"`
	PendingTransfers int `json:"pending_transfers"`
}

// QualifiedID joins an org namespace and a username ("Org1MSP::alice"), the
// form owner and actor fields use on the ledger.
func QualifiedID(org, user string) string {
	if org == "" {
		return user
	}
	return org + "::" + user
}

// SplitQualifiedID breaks a qualified identity apart. Unqualified ids return
// an empty org.
func SplitQualifiedID(id string) (org, user string) {
	if i := strings.Index(id, "::"); i >= 0 {
		return id[:i], id[i+2:]
	}
	return "", id
}

// DisplayName returns the bare username portion of a qualified identity for
// presentation on cards.
func DisplayName(id string) string {
	_, user := SplitQualifiedID(id)
	if user == "" {
		return "Unknown"
	}
	return user
}
