package identity

import (
	"context"
	"strings"
	"time"

	"github.com/eventleads/server/internal/audit"
	"github.com/eventleads/server/internal/domain/token"
)

// Credential is one user identity. At most one verified credential exists
// per email; unverified duplicates are overwritten in place by the
// lifecycle, never duplicated. Mutated by the lifecycle service only.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	PasswordSalt string
	Verified     bool
	OrgID        string
	RoleID       string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// CreateCredentialParams carries the full initial state of a credential.
type CreateCredentialParams struct {
	Email        string
	PasswordHash string
	PasswordSalt string
	Verified     bool
	OrgID        string
	RoleID       string
	FirstName    string
	LastName     string
	CreatedBy    string
}

// CredentialStore persists credentials. Email comparison at the storage
// layer is exact; the lifecycle normalizes (lowercase, trim) at every read
// and write boundary, so stored emails are always canonical.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id string) (*Credential, error)
	Create(ctx context.Context, params CreateCredentialParams) (Credential, error)
	SetPassword(ctx context.Context, id, hash, salt string) error
	MarkVerified(ctx context.Context, id string) error
	// AttachOrganization force-sets organization and role (invitation
	// acceptance, lazy org provisioning).
	AttachOrganization(ctx context.Context, id, orgID, roleID string) error
	// EnsureMembership sets the role and assigns the organization only when
	// the credential has none yet; it never steals a user already attached
	// to another organization.
	EnsureMembership(ctx context.Context, id, orgID, roleID string) error
}

// Directory resolves roles and organizations.
type Directory interface {
	RoleName(ctx context.Context, roleID string) (string, error)
	RoleIDByName(ctx context.Context, name string) (string, error)
	// DefaultOrgID returns the shared default organization (code DEFAULT)
	// that unonboarded signups are parked in.
	DefaultOrgID(ctx context.Context) (string, error)
	CreateOrganization(ctx context.Context, name string) (string, error)
	OrgCode(ctx context.Context, orgID string) (string, error)
}

// Invitation is a token specialized with tenant placement: accepting it
// creates-or-updates a credential and assigns organization and role
// atomically with token consumption.
type Invitation struct {
	ID         string
	OrgID      string
	Email      string
	Role       string
	Token      string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	IssuerID   string
	CreatedAt  time.Time
}

// InvitationStore persists invitations. Consume carries the same atomic
// single-update contract as token.Ledger.
type InvitationStore interface {
	Create(ctx context.Context, inv Invitation) (Invitation, error)
	Lookup(ctx context.Context, raw string) (*Invitation, error)
	Consume(ctx context.Context, raw string) (token.ConsumeOutcome, *Invitation, error)
	CountForOrgSince(ctx context.Context, orgID string, since time.Time) (int, error)
}

// Stores bundles the stores a single lifecycle operation mutates together.
type Stores struct {
	Credentials CredentialStore
	Tokens      token.Ledger
	Invitations InvitationStore
}

// TxRunner executes fn with every store in Stores bound to one
// transaction. Consume-and-apply paths run through it so a token is only
// burned together with the state change it authorizes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// EmailSender is the outbound mail capability: fire-and-forget, failures
// are logged by the lifecycle and never fatal to the triggering request.
type EmailSender interface {
	Send(ctx context.Context, to, subject, plainBody, htmlBody string) error
}

// Recorder is the best-effort audit sink.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// SessionIssuer builds signed session claims from a verified credential.
type SessionIssuer interface {
	Generate(subject, orgID, role string) (string, error)
}

// Tunables resolves the database-backed invitation settings.
type Tunables interface {
	InviteTokenTTL(ctx context.Context) time.Duration
	InviteDailyLimit(ctx context.Context) int
}

// NormalizeEmail applies the canonical email form used at every lifecycle
// boundary: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailLocalPart returns the part before the @, used to derive display
// names for self-provisioned organizations.
func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
