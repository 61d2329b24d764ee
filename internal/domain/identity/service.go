package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/audit"
	"github.com/eventleads/server/internal/auth"
	"github.com/eventleads/server/internal/domain/token"
	"github.com/eventleads/server/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultRoleName is assigned to self-signup credentials.
	DefaultRoleName = "User"

	roleAdmin       = "Admin"
	roleSystemAdmin = "SystemAdmin"

	// defaultOrgCode marks the shared organization unonboarded signups are
	// parked in.
	defaultOrgCode = "DEFAULT"
)

// Config carries the lifecycle tunables that live in process configuration.
// Invitation TTL and the per-org invite cap come from Tunables instead.
type Config struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	ResendCooldown       time.Duration
	ResendDailyCap       int
	ResetCooldown        time.Duration
	ResetDailyCap        int
	FrontendURL          string
}

// Service orchestrates the signup → verify → login → reset and
// invite → accept flows. All state-machine logic lives here; the stores
// hold no policy.
type Service struct {
	creds         CredentialStore
	dir           Directory
	tokens        token.Ledger
	invites       InvitationStore
	tx            TxRunner
	limiter       *RateLimiter
	inviteLimiter *RateLimiter
	auditor       Recorder
	mailer        EmailSender
	issuer        SessionIssuer
	tunables      Tunables
	cfg           Config
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(
	creds CredentialStore,
	dir Directory,
	tokens token.Ledger,
	invites InvitationStore,
	tx TxRunner,
	auditor Recorder,
	mailer EmailSender,
	issuer SessionIssuer,
	tunables Tunables,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		creds:         creds,
		dir:           dir,
		tokens:        tokens,
		invites:       invites,
		tx:            tx,
		limiter:       NewRateLimiter(tokens),
		inviteLimiter: NewRateLimiter(invitationHistory{invites}),
		auditor:       auditor,
		mailer:        mailer,
		issuer:        issuer,
		tunables:      tunables,
		cfg:           cfg,
		logger:        logger.With().Str("component", "identity").Logger(),
		now:           time.Now,
	}
}

// invitationHistory adapts the invitation store to the rate limiter's view
// of issuance history. Invitations have no cooldown, only the daily cap,
// so LastIssuedAt never reports a previous issuance.
type invitationHistory struct {
	invites InvitationStore
}

func (h invitationHistory) CountSince(ctx context.Context, subjectID string, _ token.Kind, since time.Time) (int, error) {
	return h.invites.CountForOrgSince(ctx, subjectID, since)
}

func (h invitationHistory) LastIssuedAt(context.Context, string, token.Kind) (*time.Time, error) {
	return nil, nil
}

// Signup registers a new identity, or refreshes an unverified one in
// place. A verified credential for the email is a hard failure; anything
// else ends with a pending-verification credential and a fresh
// verification token in the invitee's inbox.
func (s *Service) Signup(ctx context.Context, email, password string, meta audit.RequestMeta) error {
	email = NormalizeEmail(email)
	s.audit(ctx, audit.EventSignupAttempt, audit.OutcomeAttempt, "", "", email, "", meta)

	if err := validatePassword(password); err != nil {
		s.audit(ctx, audit.EventSignupFailure, audit.OutcomeFailure, "invalid_password", "", email, "", meta)
		return err
	}

	existing, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("signup lookup: %w", err)
	}
	if existing != nil && existing.Verified {
		s.audit(ctx, audit.EventSignupFailure, audit.OutcomeFailure, "already_verified", existing.ID, email, "", meta)
		return ErrAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("signup hash password: %w", err)
	}

	roleID, err := s.dir.RoleIDByName(ctx, DefaultRoleName)
	if err != nil {
		return fmt.Errorf("signup resolve default role: %w", err)
	}
	orgID, err := s.dir.DefaultOrgID(ctx)
	if err != nil {
		return fmt.Errorf("signup resolve default organization: %w", err)
	}

	var subjectID string
	if existing == nil {
		created, err := s.creds.Create(ctx, CreateCredentialParams{
			Email:        email,
			PasswordHash: hash,
			OrgID:        orgID,
			RoleID:       roleID,
			FirstName:    "New",
			LastName:     "User",
			CreatedBy:    email,
		})
		if err != nil {
			return fmt.Errorf("signup create credential: %w", err)
		}
		subjectID = created.ID
	} else {
		// unverified duplicate: overwrite in place rather than creating a
		// second row
		if err := s.creds.SetPassword(ctx, existing.ID, hash, ""); err != nil {
			return fmt.Errorf("signup update password: %w", err)
		}
		if err := s.creds.EnsureMembership(ctx, existing.ID, orgID, roleID); err != nil {
			return fmt.Errorf("signup update membership: %w", err)
		}
		subjectID = existing.ID
	}

	issued, err := s.tokens.Issue(ctx, subjectID, token.KindVerification, s.cfg.VerificationTokenTTL)
	if err != nil {
		return fmt.Errorf("signup issue verification token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(token.KindVerification)).Inc()

	s.sendVerificationEmail(ctx, email, issued.Value)
	s.audit(ctx, audit.EventSignupSuccess, audit.OutcomeSuccess, "", subjectID, email, orgID, meta)
	return nil
}

// Verify consumes a verification token and marks the credential verified.
// Consume and mark commit together; a repeat within the grace window
// re-runs the idempotent mark, so a retry still lands the flag.
func (s *Service) Verify(ctx context.Context, raw string, meta audit.RequestMeta) error {
	s.audit(ctx, audit.EventVerificationAttempt, audit.OutcomeAttempt, "", "", "", "", meta)

	var outcome token.ConsumeOutcome
	var tok *token.Token
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		outcome, tok, err = st.Tokens.Consume(ctx, raw, token.KindVerification)
		if err != nil {
			return fmt.Errorf("verify consume token: %w", err)
		}
		if !outcome.Success() {
			return nil
		}
		if err := st.Credentials.MarkVerified(ctx, tok.SubjectID); err != nil {
			return fmt.Errorf("verify mark credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(token.KindVerification), outcome.String()).Inc()

	switch outcome {
	case token.OutcomeNotFound:
		s.audit(ctx, audit.EventVerificationFailure, audit.OutcomeFailure, "invalid", "", "", "", meta)
		return ErrInvalidToken
	case token.OutcomeExpired:
		s.audit(ctx, audit.EventVerificationFailure, audit.OutcomeFailure, "expired", tok.SubjectID, "", "", meta)
		return ErrExpired
	case token.OutcomeAlreadyConsumedStale:
		s.audit(ctx, audit.EventVerificationFailure, audit.OutcomeFailure, "already_used", tok.SubjectID, "", "", meta)
		return ErrAlreadyConsumed
	}

	s.audit(ctx, audit.EventVerificationSuccess, audit.OutcomeSuccess, "", tok.SubjectID, "", "", meta)
	return nil
}

// ResendVerification issues a fresh verification token, rate limited per
// credential. Unknown or already-verified emails return success without
// sending anything so the endpoint cannot be used to probe for accounts;
// the audit trail still distinguishes the cases.
func (s *Service) ResendVerification(ctx context.Context, email string, meta audit.RequestMeta) error {
	email = NormalizeEmail(email)
	s.audit(ctx, audit.EventResendAttempt, audit.OutcomeAttempt, "", "", email, "", meta)

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("resend lookup: %w", err)
	}
	if cred == nil || cred.Verified {
		// anti-enumeration: identical success, zero tokens issued
		s.audit(ctx, audit.EventResendSuccess, audit.OutcomeSuccess, "", "", email, "", meta)
		return nil
	}

	if err := s.limiter.Check(ctx, cred.ID, token.KindVerification, s.cfg.ResendCooldown, s.cfg.ResendDailyCap); err != nil {
		if limited, ok := asRateLimited(err); ok {
			s.audit(ctx, audit.EventResendLimited, audit.OutcomeFailure, limited.Reason, cred.ID, email, "", meta)
		}
		return err
	}

	issued, err := s.tokens.Issue(ctx, cred.ID, token.KindVerification, s.cfg.VerificationTokenTTL)
	if err != nil {
		return fmt.Errorf("resend issue token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(token.KindVerification)).Inc()

	s.sendVerificationEmail(ctx, email, issued.Value)
	s.audit(ctx, audit.EventResendSuccess, audit.OutcomeSuccess, "", cred.ID, email, "", meta)
	return nil
}

// Login authenticates a credential and returns a signed session token.
// Every failure branch audits a distinct reason; absent credentials and
// password mismatches collapse to the same caller-visible error.
func (s *Service) Login(ctx context.Context, email, password string, meta audit.RequestMeta) (string, error) {
	email = NormalizeEmail(email)
	s.audit(ctx, audit.EventLoginAttempt, audit.OutcomeAttempt, "", "", email, "", meta)

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("login lookup: %w", err)
	}
	if cred == nil {
		s.audit(ctx, audit.EventLoginFailure, audit.OutcomeFailure, "invalid_credentials", "", email, "", meta)
		return "", ErrInvalidCredentials
	}
	if !cred.Verified {
		s.audit(ctx, audit.EventLoginFailure, audit.OutcomeFailure, "unverified", cred.ID, email, "", meta)
		return "", ErrUnverified
	}
	if !auth.VerifyPassword(cred.PasswordSalt, cred.PasswordHash, password) {
		s.audit(ctx, audit.EventLoginFailure, audit.OutcomeFailure, "invalid_credentials", cred.ID, email, "", meta)
		return "", ErrInvalidCredentials
	}

	orgID := s.resolveOrganization(ctx, cred)

	roleName := DefaultRoleName
	if cred.RoleID != "" {
		if name, err := s.dir.RoleName(ctx, cred.RoleID); err == nil && name != "" {
			roleName = name
		}
	}

	signed, err := s.issuer.Generate(cred.ID, orgID, roleName)
	if err != nil {
		return "", fmt.Errorf("login issue session: %w", err)
	}

	s.audit(ctx, audit.EventLoginSuccess, audit.OutcomeSuccess, "", cred.ID, email, orgID, meta)
	return signed, nil
}

// resolveOrganization returns the credential's organization, lazily
// provisioning one on first login. The self-healing is explicit and
// logged, never a silent fallback: first a personal organization derived
// from the email local part, then the shared default organization, and as
// a last resort an empty org claim.
func (s *Service) resolveOrganization(ctx context.Context, cred *Credential) string {
	if cred.OrgID != "" {
		return cred.OrgID
	}

	name := emailLocalPart(cred.Email) + "'s Organization"
	orgID, err := s.dir.CreateOrganization(ctx, name)
	if err == nil {
		if err := s.creds.AttachOrganization(ctx, cred.ID, orgID, cred.RoleID); err == nil {
			s.logger.Info().
				Str("user_id", cred.ID).
				Str("org_id", orgID).
				Msg("provisioned organization on first login")
			return orgID
		}
		s.logger.Warn().Err(err).Str("user_id", cred.ID).Msg("failed to attach provisioned organization")
	} else {
		s.logger.Warn().Err(err).Str("user_id", cred.ID).Msg("failed to provision organization")
	}

	orgID, err = s.dir.DefaultOrgID(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", cred.ID).Msg("no default organization; issuing org-less session")
		return ""
	}
	if err := s.creds.AttachOrganization(ctx, cred.ID, orgID, cred.RoleID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", cred.ID).Msg("failed to attach default organization")
	}
	return orgID
}

// RequestReset issues a password reset token, rate limited per credential.
// Unknown emails get the same generic success as known ones.
func (s *Service) RequestReset(ctx context.Context, email string, meta audit.RequestMeta) error {
	email = NormalizeEmail(email)
	s.audit(ctx, audit.EventResetRequestAttempt, audit.OutcomeAttempt, "", "", email, "", meta)

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("reset request lookup: %w", err)
	}
	if cred == nil {
		// anti-enumeration
		s.audit(ctx, audit.EventResetRequestSuccess, audit.OutcomeSuccess, "", "", email, "", meta)
		return nil
	}

	if err := s.limiter.Check(ctx, cred.ID, token.KindReset, s.cfg.ResetCooldown, s.cfg.ResetDailyCap); err != nil {
		if limited, ok := asRateLimited(err); ok {
			s.audit(ctx, audit.EventResetRequestLimited, audit.OutcomeFailure, limited.Reason, cred.ID, email, "", meta)
		}
		return err
	}

	issued, err := s.tokens.Issue(ctx, cred.ID, token.KindReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("reset request issue token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(token.KindReset)).Inc()

	resetURL := fmt.Sprintf("%s/reset/confirm?token=%s", s.cfg.FrontendURL, issued.Value)
	plain, html := renderResetEmail(resetURL)
	s.sendEmail(ctx, email, "Reset your password", plain, html)
	s.audit(ctx, audit.EventResetRequestSuccess, audit.OutcomeSuccess, "", cred.ID, email, "", meta)
	return nil
}

// ConfirmReset consumes a reset token and replaces the credential's
// password hash. Consume and password write commit together; a grace-window
// double-submit re-applies the same password.
func (s *Service) ConfirmReset(ctx context.Context, raw, newPassword string, meta audit.RequestMeta) error {
	s.audit(ctx, audit.EventResetConfirmAttempt, audit.OutcomeAttempt, "", "", "", "", meta)

	if err := validatePassword(newPassword); err != nil {
		s.audit(ctx, audit.EventResetConfirmFailure, audit.OutcomeFailure, "invalid_password", "", "", "", meta)
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("reset confirm hash password: %w", err)
	}

	var outcome token.ConsumeOutcome
	var tok *token.Token
	err = s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		outcome, tok, err = st.Tokens.Consume(ctx, raw, token.KindReset)
		if err != nil {
			return fmt.Errorf("reset confirm consume token: %w", err)
		}
		if !outcome.Success() {
			return nil
		}
		if err := st.Credentials.SetPassword(ctx, tok.SubjectID, hash, ""); err != nil {
			return fmt.Errorf("reset confirm set password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(token.KindReset), outcome.String()).Inc()

	switch outcome {
	case token.OutcomeNotFound:
		s.audit(ctx, audit.EventResetConfirmFailure, audit.OutcomeFailure, "invalid", "", "", "", meta)
		return ErrInvalidToken
	case token.OutcomeExpired:
		s.audit(ctx, audit.EventResetConfirmFailure, audit.OutcomeFailure, "expired", tok.SubjectID, "", "", meta)
		return ErrExpired
	case token.OutcomeAlreadyConsumedStale:
		s.audit(ctx, audit.EventResetConfirmFailure, audit.OutcomeFailure, "already_used", tok.SubjectID, "", "", meta)
		return ErrAlreadyConsumed
	}

	s.audit(ctx, audit.EventResetConfirmSuccess, audit.OutcomeSuccess, "", tok.SubjectID, "", "", meta)
	return nil
}

// CreateInvitationParams carries an admin's invitation request.
type CreateInvitationParams struct {
	Email     string
	Role      string
	FirstName string
	LastName  string
}

// IssuerContext identifies the admin creating an invitation, extracted
// from their session claims.
type IssuerContext struct {
	SubjectID string
	OrgID     string
	Role      string
}

// CreateInvitation reserves an organization seat for the invitee and emails
// them an accept link. The caller must hold an admin role; issuance is
// capped per organization per day. The seat is reserved immediately: the
// credential exists, bound to the issuer's organization, before the invitee
// ever authenticates.
func (s *Service) CreateInvitation(ctx context.Context, issuer IssuerContext, params CreateInvitationParams, meta audit.RequestMeta) (Invitation, error) {
	email := NormalizeEmail(params.Email)
	s.audit(ctx, audit.EventInviteCreateAttempt, audit.OutcomeAttempt, "", issuer.SubjectID, email, issuer.OrgID, meta)

	if issuer.Role != roleAdmin && issuer.Role != roleSystemAdmin {
		s.audit(ctx, audit.EventInviteCreateFailure, audit.OutcomeFailure, "forbidden", issuer.SubjectID, email, issuer.OrgID, meta)
		return Invitation{}, ErrForbidden
	}
	if issuer.OrgID == "" {
		s.audit(ctx, audit.EventInviteCreateFailure, audit.OutcomeFailure, "missing_org", issuer.SubjectID, email, "", meta)
		return Invitation{}, ErrMissingOrg
	}

	dailyCap := s.tunables.InviteDailyLimit(ctx)
	if err := s.inviteLimiter.Check(ctx, issuer.OrgID, token.KindInvitation, 0, dailyCap); err != nil {
		if limited, ok := asRateLimited(err); ok {
			s.audit(ctx, audit.EventInviteCreateLimited, audit.OutcomeFailure, limited.Reason, issuer.SubjectID, email, issuer.OrgID, meta)
		}
		return Invitation{}, err
	}

	roleID, err := s.resolveRoleWithFallback(ctx, params.Role)
	if err != nil {
		s.audit(ctx, audit.EventInviteCreateFailure, audit.OutcomeFailure, "invalid_role", issuer.SubjectID, email, issuer.OrgID, meta)
		return Invitation{}, err
	}

	existing, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return Invitation{}, fmt.Errorf("invite lookup: %w", err)
	}
	if existing == nil {
		_, err = s.creds.Create(ctx, CreateCredentialParams{
			Email:     email,
			OrgID:     issuer.OrgID,
			RoleID:    roleID,
			FirstName: params.FirstName,
			LastName:  params.LastName,
			CreatedBy: issuer.SubjectID,
		})
		if err != nil {
			return Invitation{}, fmt.Errorf("invite pre-provision credential: %w", err)
		}
	} else {
		if err := s.creds.EnsureMembership(ctx, existing.ID, issuer.OrgID, roleID); err != nil {
			return Invitation{}, fmt.Errorf("invite update membership: %w", err)
		}
	}

	value, err := token.NewValue()
	if err != nil {
		return Invitation{}, fmt.Errorf("invite token: %w", err)
	}
	ttl := s.tunables.InviteTokenTTL(ctx)
	inv, err := s.invites.Create(ctx, Invitation{
		OrgID:     issuer.OrgID,
		Email:     email,
		Role:      params.Role,
		Token:     value,
		ExpiresAt: s.now().Add(ttl),
		IssuerID:  issuer.SubjectID,
	})
	if err != nil {
		return Invitation{}, fmt.Errorf("invite create: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(token.KindInvitation)).Inc()

	inviterName := s.inviterDisplayName(ctx, issuer.SubjectID)
	s.sendInvitationEmail(ctx, email, value, inviterName, ttl)
	s.audit(ctx, audit.EventInviteCreateSuccess, audit.OutcomeSuccess, "", issuer.SubjectID, email, issuer.OrgID, meta)
	return inv, nil
}

// PreviewInvitation returns the invitee email and the inviter's display
// name for an unconsumed accept page. Unknown tokens are a plain not-found.
func (s *Service) PreviewInvitation(ctx context.Context, raw string) (Invitation, string, error) {
	inv, err := s.invites.Lookup(ctx, raw)
	if err != nil {
		return Invitation{}, "", fmt.Errorf("invite preview lookup: %w", err)
	}
	if inv == nil {
		return Invitation{}, "", ErrNotFound
	}
	return *inv, s.inviterDisplayName(ctx, inv.IssuerID), nil
}

// AcceptInvitation consumes an invitation token, sets the invitee's
// password, marks them verified, and attaches organization and role. The
// seat assignment rides the same atomic consume: a second acceptance with
// the same token fails once the grace window passes.
func (s *Service) AcceptInvitation(ctx context.Context, raw, password string, meta audit.RequestMeta) (*Credential, error) {
	s.audit(ctx, audit.EventInviteAcceptAttempt, audit.OutcomeAttempt, "", "", "", "", meta)

	if err := validatePassword(password); err != nil {
		s.audit(ctx, audit.EventInviteAcceptFailure, audit.OutcomeFailure, "invalid_password", "", "", "", meta)
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("invite accept hash password: %w", err)
	}

	var outcome token.ConsumeOutcome
	var inv *Invitation
	var cred *Credential
	err = s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		outcome, inv, err = st.Invitations.Consume(ctx, raw)
		if err != nil {
			return fmt.Errorf("invite accept consume: %w", err)
		}
		if !outcome.Success() {
			return nil
		}

		roleID, err := s.resolveRoleWithFallback(ctx, inv.Role)
		if err != nil {
			return err
		}

		cred, err = st.Credentials.FindByEmail(ctx, inv.Email)
		if err != nil {
			return fmt.Errorf("invite accept lookup: %w", err)
		}
		if cred == nil {
			created, err := st.Credentials.Create(ctx, CreateCredentialParams{
				Email:        inv.Email,
				PasswordHash: hash,
				Verified:     true,
				OrgID:        inv.OrgID,
				RoleID:       roleID,
				FirstName:    emailLocalPart(inv.Email),
				LastName:     "User",
				CreatedBy:    inv.IssuerID,
			})
			if err != nil {
				return fmt.Errorf("invite accept create credential: %w", err)
			}
			cred = &created
			return nil
		}
		if err := st.Credentials.SetPassword(ctx, cred.ID, hash, ""); err != nil {
			return fmt.Errorf("invite accept set password: %w", err)
		}
		if err := st.Credentials.MarkVerified(ctx, cred.ID); err != nil {
			return fmt.Errorf("invite accept mark verified: %w", err)
		}
		if err := st.Credentials.AttachOrganization(ctx, cred.ID, inv.OrgID, roleID); err != nil {
			return fmt.Errorf("invite accept attach organization: %w", err)
		}
		cred.Verified = true
		cred.OrgID = inv.OrgID
		cred.RoleID = roleID
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(token.KindInvitation), outcome.String()).Inc()

	switch outcome {
	case token.OutcomeNotFound:
		s.audit(ctx, audit.EventInviteAcceptFailure, audit.OutcomeFailure, "invalid", "", "", "", meta)
		return nil, ErrInvalidToken
	case token.OutcomeExpired:
		s.audit(ctx, audit.EventInviteAcceptFailure, audit.OutcomeFailure, "expired", "", inv.Email, inv.OrgID, meta)
		return nil, ErrExpired
	case token.OutcomeAlreadyConsumedStale:
		s.audit(ctx, audit.EventInviteAcceptFailure, audit.OutcomeFailure, "already_used", "", inv.Email, inv.OrgID, meta)
		return nil, ErrAlreadyConsumed
	}

	s.audit(ctx, audit.EventInviteAcceptSuccess, audit.OutcomeSuccess, "", cred.ID, inv.Email, inv.OrgID, meta)
	return cred, nil
}

// Profile returns the credential behind a session subject.
func (s *Service) Profile(ctx context.Context, subjectID string) (*Credential, error) {
	cred, err := s.creds.FindByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("profile lookup: %w", err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}
	return cred, nil
}

// Logout records the event only; sessions are stateless and the client
// discards the token.
func (s *Service) Logout(ctx context.Context, subjectID string, meta audit.RequestMeta) {
	s.audit(ctx, audit.EventLogout, audit.OutcomeSuccess, "", subjectID, "", "", meta)
}

// NeedsOnboarding reports whether an organization is the shared default
// one, meaning its members still have to create their own organization.
func (s *Service) NeedsOnboarding(ctx context.Context, orgID string) bool {
	if orgID == "" {
		return false
	}
	code, err := s.dir.OrgCode(ctx, orgID)
	if err != nil {
		return false
	}
	return code == defaultOrgCode
}

func (s *Service) resolveRoleWithFallback(ctx context.Context, roleName string) (string, error) {
	if roleName != "" {
		if id, err := s.dir.RoleIDByName(ctx, roleName); err == nil && id != "" {
			return id, nil
		}
	}
	id, err := s.dir.RoleIDByName(ctx, DefaultRoleName)
	if err != nil || id == "" {
		return "", ErrInvalidRole
	}
	return id, nil
}

func (s *Service) inviterDisplayName(ctx context.Context, issuerID string) string {
	if issuerID == "" {
		return "An Admin"
	}
	issuer, err := s.creds.FindByID(ctx, issuerID)
	if err != nil || issuer == nil {
		return "An Admin"
	}
	if issuer.FirstName != "" || issuer.LastName != "" {
		name := issuer.FirstName
		if issuer.LastName != "" {
			if name != "" {
				name += " "
			}
			name += issuer.LastName
		}
		return name
	}
	if issuer.Email != "" {
		return issuer.Email
	}
	return "An Admin"
}

func (s *Service) sendVerificationEmail(ctx context.Context, email, tokenValue string) {
	verifyURL := fmt.Sprintf("%s/verify?token=%s", s.cfg.FrontendURL, tokenValue)
	plain, html := renderVerificationEmail(verifyURL)
	s.sendEmail(ctx, email, "Verify your account", plain, html)
}

func (s *Service) sendInvitationEmail(ctx context.Context, email, tokenValue, inviterName string, ttl time.Duration) {
	acceptURL := fmt.Sprintf("%s/invite/accept?token=%s", s.cfg.FrontendURL, tokenValue)
	plain, html := renderInvitationEmail(inviterName, acceptURL, int(ttl.Hours()))
	s.sendEmail(ctx, email, "You're invited to Event Leads", plain, html)
}

// sendEmail is fire-and-forget: delivery failure is logged and never fails
// the triggering request.
func (s *Service) sendEmail(ctx context.Context, to, subject, plain, html string) {
	if err := s.mailer.Send(ctx, to, subject, plain, html); err != nil {
		s.logger.Error().Err(err).Str("to", to).Str("subject", subject).Msg("email delivery failed")
	}
}

func (s *Service) audit(ctx context.Context, typ audit.EventType, outcome audit.Outcome, reason, subjectID, email, orgID string, meta audit.RequestMeta) {
	s.auditor.Record(ctx, audit.Entry{
		Type:      typ,
		Outcome:   outcome,
		Reason:    reason,
		SubjectID: subjectID,
		Email:     email,
		OrgID:     orgID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}

func asRateLimited(err error) (*RateLimitedError, bool) {
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		return limited, true
	}
	return nil, false
}
